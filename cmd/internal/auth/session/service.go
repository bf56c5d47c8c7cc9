package session

import (
	"context"
	"errors"
	"time"
)

// Service implements the high-level token lifecycle operations.
//
// It issues credentials, answers both validity predicates, tracks activity,
// performs refresh rotation, and revokes single tokens or a whole account's
// tokens. All state lives in the Store; the service itself is stateless and
// safe for concurrent use.
type Service struct {
	cfg        Config
	codec      TokenCodec
	store      Store
	principals PrincipalSource

	// OnIssued, if set, is called after each successfully stored credential.
	OnIssued func()

	// OnRotationConflict, if set, is called when a refresh loses the rotation
	// race at the conditional revoke.
	OnRotationConflict func()
}

// Issued is the result of issuing or rotating a credential.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service from configuration, a token store, a codec,
// and the user-lookup collaborator.
func NewService(cfg Config, store Store, codec TokenCodec, principals PrincipalSource) *Service {
	return &Service{cfg: cfg, codec: codec, store: store, principals: principals}
}

// Issue creates a signed credential for an active principal and registers its
// record. The token is returned only after the record is stored; a failed
// insert leaves no issued-but-unrecorded token reachable to callers.
func (s *Service) Issue(ctx context.Context, now time.Time, p Principal) (Issued, error) {
	if p.ID == "" || !p.Active {
		return Issued{}, ErrInvalidPrincipal
	}

	expiresAt := now.Add(s.cfg.TokenTTL)

	tokenValue, err := s.codec.Sign(p, now, expiresAt)
	if err != nil {
		return Issued{}, err
	}

	if err := s.store.Insert(ctx, Record{
		Token:          tokenValue,
		UserID:         p.ID,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
		LastActivityAt: now,
	}); err != nil {
		return Issued{}, err
	}

	if s.OnIssued != nil {
		s.OnIssued()
	}

	return Issued{Token: tokenValue, ExpiresAt: expiresAt}, nil
}

// IsActive is the interceptor predicate: the record exists, is not revoked,
// and has seen activity within the inactivity window. Absolute expiry is
// deliberately not consulted here; the caller only reaches this check holding
// a token whose signature (and "exp") already verified.
func (s *Service) IsActive(ctx context.Context, now time.Time, tokenValue string) (bool, error) {
	rec, err := s.store.Get(ctx, tokenValue)
	if errors.Is(err, ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if rec.Revoked {
		return false, nil
	}
	if now.Sub(rec.LastActivityAt) > s.cfg.InactivityWindow {
		return false, nil
	}
	return true, nil
}

// IsValid is the direct-check predicate: the record exists, is not revoked,
// and its absolute lifetime has not passed. Inactivity is deliberately not
// consulted here. Keep this distinct from IsActive; collapsing the two
// changes behavior.
func (s *Service) IsValid(ctx context.Context, now time.Time, tokenValue string) (bool, error) {
	rec, err := s.store.Get(ctx, tokenValue)
	if errors.Is(err, ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return !rec.Revoked && rec.ExpiresAt.After(now), nil
}

// Touch refreshes the record's last-activity timestamp. Missing or revoked
// tokens are a no-op.
func (s *Service) Touch(ctx context.Context, now time.Time, tokenValue string) error {
	return s.store.Touch(ctx, now, tokenValue)
}

// Refresh rotates a credential: it revokes the presented token and issues a
// fresh one for the same principal. The old token is never revived.
//
// Failure modes, checked in order:
//   - ErrTokenInvalid: no record, revoked, or lost a concurrent rotation race.
//   - ErrTokenInactive: idle beyond the inactivity window.
//   - ErrPrincipalUnavailable: owner deleted or deactivated since issuance.
//
// The conditional revoke is the rotation's mutual-exclusion point: of two
// near-simultaneous refreshes of one token, exactly one wins; the loser
// observes the record already revoked and fails with ErrTokenInvalid.
func (s *Service) Refresh(ctx context.Context, now time.Time, tokenValue string) (Issued, Principal, error) {
	rec, err := s.store.Get(ctx, tokenValue)
	if errors.Is(err, ErrTokenNotFound) {
		return Issued{}, Principal{}, ErrTokenInvalid
	}
	if err != nil {
		return Issued{}, Principal{}, err
	}
	if rec.Revoked {
		return Issued{}, Principal{}, ErrTokenInvalid
	}

	if now.Sub(rec.LastActivityAt) > s.cfg.InactivityWindow {
		return Issued{}, Principal{}, ErrTokenInactive
	}

	p, err := s.principals.FindPrincipalByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrPrincipalUnavailable) {
			return Issued{}, Principal{}, ErrPrincipalUnavailable
		}
		return Issued{}, Principal{}, err
	}
	if !p.Active {
		return Issued{}, Principal{}, ErrPrincipalUnavailable
	}

	if _, err := s.store.RevokeIfActive(ctx, tokenValue); err != nil {
		if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenRevoked) {
			if s.OnRotationConflict != nil {
				s.OnRotationConflict()
			}
			return Issued{}, Principal{}, ErrTokenInvalid
		}
		return Issued{}, Principal{}, err
	}

	issued, err := s.Issue(ctx, now, p)
	if err != nil {
		return Issued{}, Principal{}, err
	}

	return issued, p, nil
}

// Revoke marks a single token revoked (idempotent; logout path).
func (s *Service) Revoke(ctx context.Context, tokenValue string) error {
	return s.store.Revoke(ctx, tokenValue)
}

// RevokeAll revokes every token owned by userID (password change,
// administrative account actions). The store stamps the owner with now, so an
// issuance racing the bulk revoke cannot leave a live session behind: any
// credential issued before the stamp is reported revoked even if its record
// lands in the store afterwards.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAllForUser(ctx, now, userID)
}

// Authenticate verifies a credential end to end for API callers: signature,
// issuer, audience, and absolute expiry via the codec, then the stored
// record via the direct-check predicate. Returns the embedded claims.
func (s *Service) Authenticate(ctx context.Context, now time.Time, tokenValue string) (Claims, error) {
	claims, err := s.codec.Verify(tokenValue, now)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	// Server-authoritative record check to honor revocations.
	ok, err := s.IsValid(ctx, now, tokenValue)
	if err != nil {
		return Claims{}, err
	}
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}

// CleanupExpired deletes records past their absolute expiry or revoked.
// Idempotent and safe to run concurrently with everything else.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}
