package password

import (
	"os"
	"strconv"
	"strings"
)

// Argon2idParams defines the Argon2id cost parameters.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config bundles hashing parameters and length policy.
type Config struct {
	Params Argon2idParams

	MinLength int
	MaxLength int
}

// DefaultConfig returns parameters suitable for interactive logins
// (RFC 9106 second recommended option).
func DefaultConfig() Config {
	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		MinLength: 8,
		MaxLength: 256,
	}
}

// FromEnv loads Config from environment variables with defaults.
//
// Optional:
//   - VB_PWHASH_MEMORY_KIB
//   - VB_PWHASH_ITERATIONS
//   - VB_PWHASH_PARALLELISM
//   - VB_PW_MIN_LENGTH
func FromEnv() Config {
	cfg := DefaultConfig()

	if n, ok := envUint32("VB_PWHASH_MEMORY_KIB"); ok && n >= 8*1024 {
		cfg.Params.MemoryKiB = n
	}
	if n, ok := envUint32("VB_PWHASH_ITERATIONS"); ok && n >= 1 {
		cfg.Params.Iterations = n
	}
	if n, ok := envUint32("VB_PWHASH_PARALLELISM"); ok && n >= 1 && n <= 255 {
		cfg.Params.Parallelism = uint8(n)
	}
	if n, ok := envUint32("VB_PW_MIN_LENGTH"); ok && int(n) > cfg.MinLength {
		cfg.MinLength = int(n)
	}

	return cfg
}

func envUint32(key string) (uint32, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
