package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ventasbros/cmd/internal/auth/session"
)

// Response headers carrying a silently rotated credential. Clients that see
// them swap their stored token; clients that ignore them keep working until
// the old token expires for real.
const (
	HeaderNewToken       = "X-New-Token"
	HeaderTokenExpiresAt = "X-Token-Expires-At"
)

// TokenRefresh is the silent-renewal middleware. For requests carrying a
// Bearer token it records activity and speculatively rotates the credential,
// advertising the replacement in response headers.
//
// It never rejects a request: authorization is the wrapped handler's job.
// Any failure here (revoked mid-flight, lost rotation race, owner deleted)
// just means no new token is advertised.
type TokenRefresh struct {
	log      *slog.Logger
	sessions *session.Service

	// OnRotated, if set, is called after each successful silent rotation.
	OnRotated func()
}

// NewTokenRefresh builds the silent-renewal middleware.
func NewTokenRefresh(log *slog.Logger, sessions *session.Service) *TokenRefresh {
	if log == nil {
		log = slog.Default()
	}
	return &TokenRefresh{log: log, sessions: sessions}
}

// Wrap applies the interceptor to next. Rotation happens before next runs so
// the headers are set ahead of the first body write.
//
// Requests under /api/auth/ pass through untouched: those endpoints manage
// the presented credential explicitly, and rotating it out from under an
// explicit refresh or logout would invalidate the operation itself.
func (m *TokenRefresh) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenValue := bearerToken(r)
		if tokenValue == "" || strings.HasPrefix(r.URL.Path, "/api/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		now := time.Now().UTC()

		active, err := m.sessions.IsActive(ctx, now, tokenValue)
		if err != nil {
			m.log.Error("auth.interceptor.check.fail", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !active {
			next.ServeHTTP(w, r)
			return
		}

		if err := m.sessions.Touch(ctx, now, tokenValue); err != nil {
			m.log.Error("auth.interceptor.touch.fail", "err", err)
		}

		issued, p, err := m.sessions.Refresh(ctx, now, tokenValue)
		if err != nil {
			// A lost rotation race or a state change since the activity check;
			// the request itself still proceeds with the presented token.
			if !errors.Is(err, session.ErrTokenInvalid) &&
				!errors.Is(err, session.ErrTokenInactive) &&
				!errors.Is(err, session.ErrPrincipalUnavailable) {
				m.log.Error("auth.interceptor.refresh.fail", "err", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set(HeaderNewToken, issued.Token)
		w.Header().Set(HeaderTokenExpiresAt, issued.ExpiresAt.Format(time.RFC3339))

		if m.OnRotated != nil {
			m.OnRotated()
		}

		// The presented token is revoked now. Hand the rotated identity to the
		// wrapped handler so its auth check does not bounce this request.
		r = r.WithContext(contextWithClaims(ctx, rotatedClaims(p)))

		next.ServeHTTP(w, r)
	})
}

type claimsCtxKey struct{}

func contextWithClaims(ctx context.Context, claims session.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFromContext returns claims placed by the silent-renewal middleware.
func ClaimsFromContext(ctx context.Context) (session.Claims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(session.Claims)
	return claims, ok
}

func rotatedClaims(p session.Principal) session.Claims {
	return session.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: p.ID},
		Username:         p.Username,
		Email:            p.Email,
		Role:             p.Role,
	}
}
