package session

import "errors"

var (
	// ErrInvalidPrincipal is returned when issuance is requested for a missing or inactive account.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrTokenInvalid is returned when a presented token has no live record or is revoked.
	// Terminal; the caller must re-authenticate.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenInactive is returned when a record exists and is not revoked but has been
	// idle beyond the inactivity window. Distinguished from ErrTokenInvalid so callers
	// can render "session timed out" instead of "not logged in".
	ErrTokenInactive = errors.New("token expired by inactivity")

	// ErrPrincipalUnavailable is returned when the owning account was deleted or
	// deactivated after the token was issued.
	ErrPrincipalUnavailable = errors.New("principal unavailable")

	// ErrTokenNotFound is returned by stores when no record matches the token value.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenRevoked is returned by stores when a conditional revoke finds the record
	// already revoked (e.g. the other side of a rotation race).
	ErrTokenRevoked = errors.New("token already revoked")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
