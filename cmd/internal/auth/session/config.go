package session

import (
	"os"
	"strings"
	"time"

	"ventasbros/cmd/security/token"
)

// Config defines all runtime configuration for the token subsystem.
//
// TokenTTL is the single source for the absolute lifetime: issuance and refresh
// both derive the new expiry from it, so the two cannot drift apart.
// It is explicit and environment-driven so deployments can tune security
// parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// Audience is the value set in the "aud" claim.
	Audience string

	// SigningKey is the HMAC-SHA256 secret for signing and verifying credentials.
	SigningKey []byte

	// TokenTTL is the absolute token lifetime from issuance.
	TokenTTL time.Duration

	// InactivityWindow is the sliding-window idle limit. A token untouched for
	// longer than this stops being active even if its absolute lifetime remains.
	InactivityWindow time.Duration

	// CleanupInterval is the period of the expired-token sweep.
	CleanupInterval time.Duration
}

// DefaultConfig returns defaults matching the deployed policy (15-minute
// absolute lifetime and inactivity window). The signing key has no default.
func DefaultConfig() Config {
	return Config{
		Issuer:           "ventasbros",
		Audience:         "ventasbros-clients",
		TokenTTL:         15 * time.Minute,
		InactivityWindow: 15 * time.Minute,
		CleanupInterval:  10 * time.Minute,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - VB_JWT_SECRET_KEY (min 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - VB_AUTH_ISSUER
//   - VB_AUTH_AUDIENCE
//   - VB_AUTH_TOKEN_TTL
//   - VB_AUTH_INACTIVITY_WINDOW
//   - VB_AUTH_CLEANUP_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("VB_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("VB_AUTH_AUDIENCE")); v != "" {
		cfg.Audience = v
	}

	if v := os.Getenv("VB_AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("VB_AUTH_INACTIVITY_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.InactivityWindow = d
	}

	if v := os.Getenv("VB_AUTH_CLEANUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.CleanupInterval = d
	}

	key, err := token.SigningKeyFromEnv(32)
	if err != nil {
		return Config{}, ErrConfig
	}
	cfg.SigningKey = key

	return cfg, nil
}
