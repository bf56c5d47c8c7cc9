package session

import (
	"context"
	"time"
)

// Principal is the snapshot of the owning account embedded in credentials.
// The subsystem does not own user lifecycle; it only reads these fields.
type Principal struct {
	ID       string
	Username string
	Email    string
	Role     string
	Active   bool
}

// PrincipalSource is the user-lookup capability consumed during refresh.
type PrincipalSource interface {
	// FindPrincipalByID returns the principal or ErrPrincipalUnavailable
	// (possibly wrapped) when it does not exist.
	FindPrincipalByID(ctx context.Context, id string) (Principal, error)
}

// Record is the persisted state backing one issued credential.
//
// Invariant: IssuedAt <= LastActivityAt <= now, and once Revoked is true the
// record is permanently unusable regardless of the other fields.
type Record struct {
	Token          string
	UserID         string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
	Revoked        bool
}

// Store abstracts token-record persistence.
//
// It is the only shared mutable resource of the subsystem: all mutation goes
// through it and no revocation state is cached across requests, so a revoke is
// visible to the very next check anywhere in the process.
type Store interface {
	// Insert persists a new record. The token value is unique for all time.
	Insert(ctx context.Context, rec Record) error

	// Get loads a record by token value. Missing records map to ErrTokenNotFound.
	Get(ctx context.Context, tokenValue string) (Record, error)

	// Touch sets last_activity_at for a non-revoked record.
	// Missing or revoked tokens are a no-op, not an error.
	Touch(ctx context.Context, now time.Time, tokenValue string) error

	// Revoke marks a record revoked. Idempotent: revoking an already-revoked
	// or missing token is not an error.
	Revoke(ctx context.Context, tokenValue string) error

	// RevokeIfActive atomically marks the record revoked iff it is not already,
	// and returns the record as it was before the flip. ErrTokenNotFound when
	// missing, ErrTokenRevoked when the flag was already set. This is the
	// mutual-exclusion point for rotation: of N concurrent callers exactly one
	// receives the record.
	RevokeIfActive(ctx context.Context, tokenValue string) (Record, error)

	// RevokeAllForUser revokes every record owned by userID: existing rows are
	// flagged, and the owner is stamped with now so that a record whose insert
	// commits after the bulk update is still reported revoked. Get and
	// RevokeIfActive fold the stamp in: any record with IssuedAt earlier than
	// the owner's stamp reads back revoked regardless of its row flag.
	RevokeAllForUser(ctx context.Context, now time.Time, userID string) error

	// DeleteExpired removes records with expires_at < now or revoked = true and
	// reports how many went away. Garbage collection only: validity never
	// depends on it having run.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
