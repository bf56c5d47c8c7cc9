package authapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func wrapProbe(m *TokenRefresh) (http.Handler, *bool, *string) {
	called := new(bool)
	subject := new(string)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			*subject = claims.Subject
		}
		w.WriteHeader(http.StatusOK)
	})
	return m.Wrap(next), called, subject
}

func TestTokenRefresh_RotatesAndAdvertises(t *testing.T) {
	e := newTestEnv(t)
	login := e.login(t)

	m := NewTokenRefresh(nil, e.sessions)
	var rotations int
	m.OnRotated = func() { rotations++ }
	h, called, subject := wrapProbe(m)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("wrapped handler not called")
	}
	if rotations != 1 {
		t.Fatalf("rotations = %d, want 1", rotations)
	}

	newToken := rec.Header().Get(HeaderNewToken)
	if newToken == "" || newToken == login.Token.Token {
		t.Fatalf("interceptor did not advertise a rotated token")
	}
	expiresAt := rec.Header().Get(HeaderTokenExpiresAt)
	if _, err := time.Parse(time.RFC3339, expiresAt); err != nil {
		t.Fatalf("expiry header %q not RFC3339: %v", expiresAt, err)
	}
	if *subject != e.user.ID {
		t.Fatalf("context subject = %q, want %q", *subject, e.user.ID)
	}

	now := time.Now().UTC()
	if ok, _ := e.sessions.IsValid(context.Background(), now, login.Token.Token); ok {
		t.Fatalf("presented token still valid after silent rotation")
	}
	if ok, _ := e.sessions.IsValid(context.Background(), now, newToken); !ok {
		t.Fatalf("advertised token not valid")
	}
}

func TestTokenRefresh_NoBearerPassesThrough(t *testing.T) {
	e := newTestEnv(t)

	m := NewTokenRefresh(nil, e.sessions)
	h, called, _ := wrapProbe(m)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("wrapped handler not called")
	}
	if rec.Header().Get(HeaderNewToken) != "" {
		t.Fatalf("unexpected rotation without a bearer token")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenRefresh_DeadTokenNeverRejects(t *testing.T) {
	e := newTestEnv(t)
	login := e.login(t)
	if err := e.sessions.Revoke(context.Background(), login.Token.Token); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	m := NewTokenRefresh(nil, e.sessions)
	h, called, _ := wrapProbe(m)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("wrapped handler not called for dead token")
	}
	if rec.Header().Get(HeaderNewToken) != "" {
		t.Fatalf("rotated a revoked token")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("interceptor rejected the request: %d", rec.Code)
	}
}

func TestTokenRefresh_AuthEndpointsPassThrough(t *testing.T) {
	e := newTestEnv(t)
	login := e.login(t)

	m := NewTokenRefresh(nil, e.sessions)
	h, called, _ := wrapProbe(m)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("wrapped handler not called")
	}
	if rec.Header().Get(HeaderNewToken) != "" {
		t.Fatalf("interceptor rotated on a credential-management endpoint")
	}
	if ok, _ := e.sessions.IsValid(context.Background(), time.Now().UTC(), login.Token.Token); !ok {
		t.Fatalf("presented token should be untouched on auth endpoints")
	}
}

func TestTokenRefresh_GarbageTokenPassesThrough(t *testing.T) {
	e := newTestEnv(t)

	m := NewTokenRefresh(nil, e.sessions)
	h, called, _ := wrapProbe(m)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatalf("wrapped handler not called")
	}
	if rec.Header().Get(HeaderNewToken) != "" {
		t.Fatalf("rotated an unknown token")
	}
}

func TestTokenRefresh_TouchExtendsActivity(t *testing.T) {
	e := newTestEnv(t)
	login := e.login(t)

	m := NewTokenRefresh(nil, e.sessions)
	h, _, _ := wrapProbe(m)

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	// Activity on the replacement token starts fresh from the rotation.
	newToken := rec.Header().Get(HeaderNewToken)
	if newToken == "" {
		t.Fatalf("no rotated token")
	}
	if ok, _ := e.sessions.IsActive(context.Background(), time.Now().UTC(), newToken); !ok {
		t.Fatalf("rotated token not active")
	}
}
