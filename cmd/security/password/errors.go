package password

import "errors"

var (
	// ErrInvalidHash is returned for malformed or unsupported encoded hashes.
	ErrInvalidHash = errors.New("invalid password hash")

	// ErrPasswordTooShort is returned when the plaintext is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrPasswordTooLong is returned when the plaintext exceeds the maximum length.
	ErrPasswordTooLong = errors.New("password too long")
)
