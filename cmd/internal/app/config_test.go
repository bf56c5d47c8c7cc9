package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second || cfg.IdleTimeout != 60*time.Second {
		t.Fatalf("timeouts = %v/%v", cfg.ReadHeaderTimeout, cfg.IdleTimeout)
	}
	if !cfg.AutoMigrate {
		t.Fatalf("AutoMigrate should default to true")
	}
	if cfg.ReadinessRequireDB {
		t.Fatalf("ReadinessRequireDB should default to false")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("VB_HTTP_ADDR", "127.0.0.1:9191")
	t.Setenv("VB_LOG_LEVEL", "debug")
	t.Setenv("VB_LOG_FORMAT", "pretty")
	t.Setenv("VB_HTTP_READ_TIMEOUT", "30s")
	t.Setenv("VB_DB_MAX_CONNS", "25")
	t.Setenv("VB_DB_AUTO_MIGRATE", "false")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9191" || cfg.LogLevel != "debug" || cfg.LogFormat != "pretty" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v", cfg.ReadTimeout)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("DBMaxConns = %d", cfg.DBMaxConns)
	}
	if cfg.AutoMigrate {
		t.Fatalf("AutoMigrate override ignored")
	}
}

func TestEnvHelpers_BadValuesFallBack(t *testing.T) {
	t.Setenv("VB_TEST_INT", "not-a-number")
	t.Setenv("VB_TEST_DUR", "soon")
	t.Setenv("VB_TEST_BOOL", "perhaps")

	if got := EnvInt("VB_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt = %d", got)
	}
	if got := EnvDuration("VB_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration = %v", got)
	}
	if got := EnvBool("VB_TEST_BOOL", true); got != true {
		t.Fatalf("EnvBool = %v", got)
	}
	if got := EnvInt32("VB_TEST_INT", 3); got != 3 {
		t.Fatalf("EnvInt32 = %d", got)
	}
}
