// Package authapi exposes the authentication HTTP surface: login, refresh,
// logout, password change, and availability checks, plus the silent-renewal
// middleware applied to authenticated routes.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ventasbros/cmd/identity"
	"ventasbros/cmd/internal/auth/session"
)

// Handler wires HTTP auth endpoints to the identity store and session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	users    identity.Store
	sessions *session.Service

	dummyHash string
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil {
		return nil, errors.New("authapi: nil identity store or session service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/changeUserPassword", h.handleChangePassword)
	mux.HandleFunc("/api/auth/checkUsernameExists/{username}", h.handleUsernameExists)
	mux.HandleFunc("/api/auth/checkEmailExists/{email}", h.handleEmailExists)
	mux.HandleFunc("/api/auth/me", h.handleMe)
}

// SessionService returns the underlying session service.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	userAuth, err := h.users.GetUserAuthByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Timing resistance: perform a dummy verify when the user is missing.
			if h.dummyHash != "" {
				_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
			}
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, userAuth.PasswordHash)
	if err != nil || !okPw {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if !userAuth.User.IsActive {
		writeError(w, http.StatusUnauthorized, "account_disabled", "account is disabled")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, session.Principal{
		ID:       userAuth.User.ID,
		Username: userAuth.User.Username,
		Email:    userAuth.User.Email,
		Role:     userAuth.User.Role,
		Active:   userAuth.User.IsActive,
	})
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.ok", "user_id", userAuth.User.ID, "ip", clientIP(r, h.cfg.TrustProxy))

	writeJSON(w, http.StatusOK, loginResponse{
		User:  toUserResponse(userAuth.User),
		Token: toTokenResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tokenValue := bearerToken(r)
	if tokenValue == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	issued, p, err := h.sessions.Refresh(ctx, now, tokenValue)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenInactive):
			writeError(w, http.StatusUnauthorized, "token_inactive", "token idle too long")
		case errors.Is(err, session.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "token_invalid", "token is not valid")
		case errors.Is(err, session.ErrPrincipalUnavailable):
			writeError(w, http.StatusUnauthorized, "principal_unavailable", "account no longer available")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		User:  principalUserResponse(p),
		Token: toTokenResponse(issued),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tokenValue := bearerToken(r)
	if tokenValue == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	// Revocation is idempotent; logout with an already-dead token still
	// succeeds so clients can always discard their credential.
	if err := h.sessions.Revoke(r.Context(), tokenValue); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "current and new password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	userAuth, err := h.users.GetUserAuthByID(ctx, claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer available")
			return
		}
		h.log.Error("auth.change_password.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	okPw, err := identity.VerifyPassword(req.CurrentPassword, userAuth.PasswordHash)
	if err != nil || !okPw {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "current password is incorrect")
		return
	}

	newHash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_password", "new password rejected by policy")
		return
	}

	if err := h.users.UpdatePassword(ctx, userAuth.User.ID, newHash, now); err != nil {
		h.log.Error("auth.change_password.update.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	// All outstanding credentials die with the old password, including the
	// one used for this request.
	if err := h.sessions.RevokeAll(ctx, now, userAuth.User.ID); err != nil {
		h.log.Error("auth.change_password.revoke_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.change_password.ok", "user_id", userAuth.User.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUsernameExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username is required")
		return
	}

	exists, err := h.users.UsernameExists(r.Context(), username)
	if err != nil {
		h.log.Error("auth.username_exists.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (h *Handler) handleEmailExists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email is required")
		return
	}

	exists, err := h.users.EmailExists(r.Context(), email)
	if err != nil {
		h.log.Error("auth.email_exists.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer available")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	return authenticateRequest(w, r, h.sessions)
}

// authenticateRequest resolves the caller's identity for protected endpoints.
// The silent-renewal middleware may already have rotated the presented token
// away; it leaves the caller's identity in the context.
func authenticateRequest(w http.ResponseWriter, r *http.Request, sessions *session.Service) (session.Claims, bool) {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims, true
	}

	tokenValue := bearerToken(r)
	if tokenValue == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.Claims{}, false
	}
	claims, err := sessions.Authenticate(r.Context(), time.Now().UTC(), tokenValue)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.Claims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
