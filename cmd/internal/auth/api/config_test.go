package authapi

import "testing"

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("VB_AUTH_TRUST_PROXY", "")
	t.Setenv("VB_AUTH_MAX_BODY_BYTES", "")

	cfg := LoadConfigFromEnv()
	if cfg.TrustProxy {
		t.Fatalf("TrustProxy default should be false")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("MaxBodyBytes = %d, want 1 MiB", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("VB_AUTH_TRUST_PROXY", "true")
	t.Setenv("VB_AUTH_MAX_BODY_BYTES", "2048")

	cfg := LoadConfigFromEnv()
	if !cfg.TrustProxy {
		t.Fatalf("TrustProxy not honored")
	}
	if cfg.MaxBodyBytes != 2048 {
		t.Fatalf("MaxBodyBytes = %d, want 2048", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("VB_AUTH_TRUST_PROXY", "definitely")
	t.Setenv("VB_AUTH_MAX_BODY_BYTES", "-10")

	cfg := LoadConfigFromEnv()
	if cfg.TrustProxy {
		t.Fatalf("unparsable bool should keep default")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("non-positive cap should keep default, got %d", cfg.MaxBodyBytes)
	}
}
