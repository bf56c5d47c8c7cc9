package token

import "errors"

var (
	// ErrSigningKeyMissing is returned when the signing secret env var is unset or blank.
	ErrSigningKeyMissing = errors.New("jwt signing key missing")

	// ErrSigningKeyTooShort is returned when the signing secret is below the required byte length.
	ErrSigningKeyTooShort = errors.New("jwt signing key too short")
)
