package identity

import "ventasbros/cmd/security/password"

// HashPassword returns a PHC-style Argon2id hash string using the env-driven
// hashing configuration. Password length policy is enforced by the collaborator.
func HashPassword(plain string) (string, error) {
	return password.FromEnv().Hash(plain)
}

// VerifyPassword checks a password against a PHC Argon2id hash.
func VerifyPassword(plain, encodedPHC string) (bool, error) {
	return password.FromEnv().Verify(encodedPHC, plain)
}
