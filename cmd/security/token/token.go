package token

import (
	"os"
	"strings"
)

const (
	// SecretEnvKey is the env var name for the JWT signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "VB_JWT_SECRET_KEY"
)

// SigningKeyFromEnv returns the configured signing key bytes (trimmed), enforcing a
// minimum byte length. HMAC-SHA256 keys shorter than 32 bytes are rejected.
// If the env var is missing/blank -> ErrSigningKeyMissing.
// If too short -> ErrSigningKeyTooShort.
func SigningKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(SecretEnvKey))
	if raw == "" {
		return nil, ErrSigningKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSigningKeyTooShort
	}
	return b, nil
}
