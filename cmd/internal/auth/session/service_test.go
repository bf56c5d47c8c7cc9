package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubPrincipals struct {
	mu   sync.Mutex
	byID map[string]Principal
}

func newStubPrincipals(ps ...Principal) *stubPrincipals {
	s := &stubPrincipals{byID: make(map[string]Principal)}
	for _, p := range ps {
		s.byID[p.ID] = p
	}
	return s
}

func (s *stubPrincipals) FindPrincipalByID(_ context.Context, id string) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return Principal{}, ErrPrincipalUnavailable
	}
	return p, nil
}

func (s *stubPrincipals) set(p Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.ID] = p
}

func (s *stubPrincipals) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func newTestService(t *testing.T, cfg Config, principals PrincipalSource) (*Service, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	codec, err := NewHS256Codec(cfg)
	if err != nil {
		t.Fatalf("NewHS256Codec: %v", err)
	}
	return NewService(cfg, store, codec, principals), store
}

func testPrincipal() Principal {
	return Principal{
		ID:       "01HZX5W9J8Q2R4T6V8X0A2C4E6",
		Username: "mgarcia",
		Email:    "mgarcia@example.com",
		Role:     "Customer",
		Active:   true,
	}
}

func TestIssue_ThenValidAndActive(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	now := time.Now().UTC()
	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if issued.Token == "" {
		t.Fatalf("empty token")
	}
	if got, want := issued.ExpiresAt, now.Add(15*time.Minute); !got.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", got, want)
	}

	ok, err := svc.IsValid(ctx, now, issued.Token)
	if err != nil || !ok {
		t.Fatalf("IsValid = %v, %v; want true", ok, err)
	}
	ok, err = svc.IsActive(ctx, now, issued.Token)
	if err != nil || !ok {
		t.Fatalf("IsActive = %v, %v; want true", ok, err)
	}
}

func TestIssue_RejectsUnusablePrincipal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals())
	now := time.Now().UTC()

	if _, err := svc.Issue(ctx, now, Principal{}); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("empty principal: got %v, want ErrInvalidPrincipal", err)
	}

	p := testPrincipal()
	p.Active = false
	if _, err := svc.Issue(ctx, now, p); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("inactive principal: got %v, want ErrInvalidPrincipal", err)
	}
}

func TestRevoke_MonotonicAndIdempotent(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))
	now := time.Now().UTC()

	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := svc.Revoke(ctx, "no-such-token"); err != nil {
		t.Fatalf("Revoke unknown token: %v", err)
	}

	// Revocation is permanent: neither predicate ever sees the token again,
	// and activity no longer counts.
	if err := svc.Touch(ctx, now, issued.Token); err != nil {
		t.Fatalf("Touch after revoke: %v", err)
	}
	if ok, _ := svc.IsValid(ctx, now, issued.Token); ok {
		t.Fatalf("IsValid true after revoke")
	}
	if ok, _ := svc.IsActive(ctx, now, issued.Token); ok {
		t.Fatalf("IsActive true after revoke")
	}
}

func TestTouch_KeepsTokenActiveAcrossWindow(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	cfg := testConfig()
	cfg.TokenTTL = time.Hour
	svc, _ := newTestService(t, cfg, newStubPrincipals(p))

	start := time.Now().UTC()
	issued, err := svc.Issue(ctx, start, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Activity every 10 minutes; each touch restarts the 15-minute window.
	now := start
	for i := 0; i < 4; i++ {
		now = now.Add(10 * time.Minute)
		if ok, _ := svc.IsActive(ctx, now, issued.Token); !ok {
			t.Fatalf("IsActive false at step %d", i)
		}
		if err := svc.Touch(ctx, now, issued.Token); err != nil {
			t.Fatalf("Touch: %v", err)
		}
	}
}

func TestPredicates_DivergeOnIdleToken(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	cfg := testConfig()
	cfg.TokenTTL = time.Hour // outlives the 15-minute inactivity window
	svc, _ := newTestService(t, cfg, newStubPrincipals(p))

	start := time.Now().UTC()
	issued, err := svc.Issue(ctx, start, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// 20 minutes idle: past the inactivity window, within the lifetime.
	now := start.Add(20 * time.Minute)
	if ok, _ := svc.IsActive(ctx, now, issued.Token); ok {
		t.Fatalf("IsActive true for idle token")
	}
	if ok, _ := svc.IsValid(ctx, now, issued.Token); !ok {
		t.Fatalf("IsValid false for idle but unexpired token")
	}
}

func TestPredicates_DivergeOnExpiredButRecentToken(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	cfg := testConfig()
	cfg.TokenTTL = 10 * time.Minute
	cfg.InactivityWindow = time.Hour
	svc, _ := newTestService(t, cfg, newStubPrincipals(p))

	start := time.Now().UTC()
	issued, err := svc.Issue(ctx, start, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now := start.Add(20 * time.Minute)
	if err := svc.Touch(ctx, now, issued.Token); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if ok, _ := svc.IsValid(ctx, now, issued.Token); ok {
		t.Fatalf("IsValid true past absolute expiry")
	}
	if ok, _ := svc.IsActive(ctx, now, issued.Token); !ok {
		t.Fatalf("IsActive false for recently touched token")
	}
}

func TestRefresh_RotatesCredential(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	start := time.Now().UTC()
	old, err := svc.Issue(ctx, start, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now := start.Add(10 * time.Minute)
	issued, got, err := svc.Refresh(ctx, now, old.Token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if issued.Token == old.Token {
		t.Fatalf("refresh returned the same token")
	}
	if want := now.Add(15 * time.Minute); !issued.ExpiresAt.Equal(want) {
		t.Fatalf("new ExpiresAt = %v, want %v", issued.ExpiresAt, want)
	}
	if got.ID != p.ID {
		t.Fatalf("principal = %q, want %q", got.ID, p.ID)
	}

	if ok, _ := svc.IsValid(ctx, now, old.Token); ok {
		t.Fatalf("old token still valid after rotation")
	}
	if ok, _ := svc.IsValid(ctx, now, issued.Token); !ok {
		t.Fatalf("new token not valid after rotation")
	}

	// Refreshing the consumed token must not revive it.
	if _, _, err := svc.Refresh(ctx, now, old.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh of consumed token: got %v, want ErrTokenInvalid", err)
	}
}

func TestRefresh_UnknownOrRevokedToken(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))
	now := time.Now().UTC()

	if _, _, err := svc.Refresh(ctx, now, "no-such-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("unknown token: got %v, want ErrTokenInvalid", err)
	}

	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, now, issued.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("revoked token: got %v, want ErrTokenInvalid", err)
	}
}

func TestRefresh_SlidingWindowScenario(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	// Issue at t, touch at t+100s, attempt refresh at t+1001s: the last
	// activity is 901s ago, past the 900s window.
	start := time.Now().UTC()
	issued, err := svc.Issue(ctx, start, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Touch(ctx, start.Add(100*time.Second), issued.Token); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	now := start.Add(1001 * time.Second)
	if _, _, err := svc.Refresh(ctx, now, issued.Token); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("idle refresh: got %v, want ErrTokenInactive", err)
	}

	// An inactivity failure does not consume the record; the direct check
	// still passes until absolute expiry.
	if ok, _ := svc.IsValid(ctx, now.Add(-200*time.Second), issued.Token); !ok {
		t.Fatalf("IsValid false before absolute expiry")
	}
}

func TestRefresh_PrincipalUnavailable(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	principals := newStubPrincipals(p)
	svc, _ := newTestService(t, testConfig(), principals)

	now := time.Now().UTC()
	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	principals.remove(p.ID)
	if _, _, err := svc.Refresh(ctx, now, issued.Token); !errors.Is(err, ErrPrincipalUnavailable) {
		t.Fatalf("deleted owner: got %v, want ErrPrincipalUnavailable", err)
	}

	// The failed refresh must not have revoked the token.
	if ok, _ := svc.IsValid(ctx, now, issued.Token); !ok {
		t.Fatalf("token revoked by failed refresh")
	}

	p.Active = false
	principals.set(p)
	if _, _, err := svc.Refresh(ctx, now, issued.Token); !errors.Is(err, ErrPrincipalUnavailable) {
		t.Fatalf("deactivated owner: got %v, want ErrPrincipalUnavailable", err)
	}
}

func TestRefresh_ConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	now := time.Now().UTC()
	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	const workers = 16
	results := make(chan error, workers)
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < workers; i++ {
		go func() {
			start.Wait()
			_, _, err := svc.Refresh(ctx, now, issued.Token)
			results <- err
		}()
	}
	start.Done()

	var wins, losses int
	for i := 0; i < workers; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenInvalid):
			losses++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1 (losses = %d)", wins, losses)
	}
}

func TestRevokeAll_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	alice := testPrincipal()
	bob := Principal{ID: "01HZX5W9J8Q2R4T6V8X0A2C4F7", Username: "bob", Email: "bob@example.com", Role: "Admin", Active: true}
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(alice, bob))

	now := time.Now().UTC()
	a1, _ := svc.Issue(ctx, now, alice)
	a2, _ := svc.Issue(ctx, now, alice)
	b1, _ := svc.Issue(ctx, now, bob)

	if err := svc.RevokeAll(ctx, now, alice.ID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	for _, tok := range []string{a1.Token, a2.Token} {
		if ok, _ := svc.IsValid(ctx, now, tok); ok {
			t.Fatalf("owner token valid after RevokeAll")
		}
	}
	if ok, _ := svc.IsValid(ctx, now, b1.Token); !ok {
		t.Fatalf("unrelated token invalidated by RevokeAll")
	}
}

func TestRevokeAll_FencesConcurrentIssuance(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	t0 := time.Now().UTC()
	t1 := t0.Add(time.Second)

	if err := svc.RevokeAll(ctx, t1, p.ID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	// A login that verified the old credentials before the bulk revoke may
	// commit its record afterwards; its issued-at predates the stamp.
	late, err := svc.Issue(ctx, t0, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if ok, _ := svc.IsValid(ctx, t1, late.Token); ok {
		t.Fatalf("token issued before the revoke-all stamp reported valid")
	}
	if ok, _ := svc.IsActive(ctx, t1, late.Token); ok {
		t.Fatalf("token issued before the revoke-all stamp reported active")
	}
	if _, _, err := svc.Refresh(ctx, t1, late.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Refresh = %v, want ErrTokenInvalid", err)
	}

	// Issuance at or after the stamp is unaffected.
	fresh, err := svc.Issue(ctx, t1, p)
	if err != nil {
		t.Fatalf("Issue after stamp: %v", err)
	}
	if ok, _ := svc.IsValid(ctx, t1, fresh.Token); !ok {
		t.Fatalf("token issued after the revoke-all stamp reported invalid")
	}
}

func TestCleanupExpired_RemovesOnlyDeadRecords(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, store := newTestService(t, testConfig(), newStubPrincipals(p))

	start := time.Now().UTC()
	live, _ := svc.Issue(ctx, start, p)
	expired, _ := svc.Issue(ctx, start.Add(-time.Hour), p)
	revoked, _ := svc.Issue(ctx, start, p)
	if err := svc.Revoke(ctx, revoked.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	n, err := svc.CleanupExpired(ctx, start)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("swept %d rows, want 2", n)
	}

	if _, err := store.Get(ctx, live.Token); err != nil {
		t.Fatalf("live record removed: %v", err)
	}
	for _, tok := range []string{expired.Token, revoked.Token} {
		if _, err := store.Get(ctx, tok); !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("dead record survived sweep: %v", err)
		}
	}

	// Second pass is a no-op.
	if n, err := svc.CleanupExpired(ctx, start); err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v; want 0, nil", n, err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	p := testPrincipal()
	svc, _ := newTestService(t, testConfig(), newStubPrincipals(p))

	now := time.Now().UTC()
	issued, err := svc.Issue(ctx, now, p)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := svc.Authenticate(ctx, now, issued.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Subject != p.ID || claims.Username != p.Username || claims.Role != p.Role {
		t.Fatalf("claims = %+v, want principal attributes", claims)
	}

	if _, err := svc.Authenticate(ctx, now, issued.Token+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered token: got %v, want ErrTokenInvalid", err)
	}

	if err := svc.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Authenticate(ctx, now, issued.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("revoked token: got %v, want ErrTokenInvalid", err)
	}
}
