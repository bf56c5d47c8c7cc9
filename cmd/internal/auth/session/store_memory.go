package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by unit tests and the no-DB dev mode.
// All methods take the same lock, so its visibility and atomicity guarantees
// match the Postgres implementation.
type MemoryStore struct {
	mu            sync.Mutex
	records       map[string]*Record
	revokedBefore map[string]time.Time
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:       make(map[string]*Record),
		revokedBefore: make(map[string]time.Time),
	}
}

// withStamp folds the owner's revoke-all stamp into a record copy.
// Caller holds mu.
func (s *MemoryStore) withStamp(rec Record) Record {
	if stamp, ok := s.revokedBefore[rec.UserID]; ok && rec.IssuedAt.Before(stamp) {
		rec.Revoked = true
	}
	return rec
}

// Insert persists a new record.
func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := rec
	s.records[rec.Token] = &cp
	return nil
}

// Get loads a record by token value.
func (s *MemoryStore) Get(_ context.Context, tokenValue string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenValue]
	if !ok {
		return Record{}, ErrTokenNotFound
	}
	return s.withStamp(*rec), nil
}

// Touch sets last_activity_at for a non-revoked record; no-op otherwise.
func (s *MemoryStore) Touch(_ context.Context, now time.Time, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenValue]
	if !ok || s.withStamp(*rec).Revoked {
		return nil
	}
	rec.LastActivityAt = now
	return nil
}

// Revoke marks a record revoked (idempotent).
func (s *MemoryStore) Revoke(_ context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[tokenValue]; ok {
		rec.Revoked = true
	}
	return nil
}

// RevokeIfActive atomically flips the revoked flag and returns the prior record.
func (s *MemoryStore) RevokeIfActive(_ context.Context, tokenValue string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenValue]
	if !ok {
		return Record{}, ErrTokenNotFound
	}
	if s.withStamp(*rec).Revoked {
		return Record{}, ErrTokenRevoked
	}

	prior := *rec
	rec.Revoked = true
	return prior, nil
}

// RevokeAllForUser revokes every record owned by userID and advances the
// owner's revoke-all stamp so records inserted after the sweep with an earlier
// issued-at still read back revoked.
func (s *MemoryStore) RevokeAllForUser(_ context.Context, now time.Time, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
	if cur, ok := s.revokedBefore[userID]; !ok || now.After(cur) {
		s.revokedBefore[userID] = now
	}
	return nil
}

// DeleteExpired removes expired or revoked records.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for tok, rec := range s.records {
		if rec.Revoked || rec.ExpiresAt.Before(now) {
			delete(s.records, tok)
			n++
		}
	}
	return n, nil
}
