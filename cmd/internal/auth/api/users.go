package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ventasbros/cmd/identity"
	"ventasbros/cmd/internal/auth/session"
)

// Users exposes the user-management HTTP surface. Registration, listing, and
// deletion are admin-only; get and update also accept the account owner.
type Users struct {
	log      *slog.Logger
	cfg      Config
	users    identity.Store
	sessions *session.Service
}

// NewUsers constructs the user-management handler.
func NewUsers(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service) (*Users, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil {
		return nil, errors.New("authapi: nil identity store or session service")
	}
	return &Users{log: log, cfg: cfg, users: users, sessions: sessions}, nil
}

// Register wires user routes onto the provided mux.
func (h *Users) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/users/registerUser", h.handleRegister)
	mux.HandleFunc("/api/users/getAllUsers", h.handleList)
	mux.HandleFunc("/api/users/getUsersById/{id}", h.handleGet)
	mux.HandleFunc("/api/users/updateUserById/{id}", h.handleUpdate)
	mux.HandleFunc("/api/users/deleteUserById/{id}", h.handleDelete)
}

func (h *Users) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	var req registerUserRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = identity.RoleCustomer
	}
	if role != identity.RoleAdmin && role != identity.RoleCustomer {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	u, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.fail(w, "users.register.fail", err)
		return
	}

	h.log.Info("users.register.ok", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusCreated, registerUserResponse{User: toUserResponse(u)})
}

func (h *Users) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	all, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "users.list.fail", err)
		return
	}

	out := make([]userResponse, 0, len(all))
	for _, u := range all {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, listUsersResponse{Users: out})
}

func (h *Users) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if _, ok := h.requireAdminOrSelf(w, r, id); !ok {
		return
	}

	u, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		h.fail(w, "users.get.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, registerUserResponse{User: toUserResponse(u)})
}

func (h *Users) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	claims, ok := h.requireAdminOrSelf(w, r, id)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()

	current, err := h.users.GetUserByID(ctx, id)
	if err != nil {
		h.fail(w, "users.update.fail", err)
		return
	}

	in := identity.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	}
	// Role and active-flag changes stay admin-only; owners can edit their
	// username and email.
	if claims.Role != identity.RoleAdmin {
		in.Role = current.Role
		in.IsActive = current.IsActive
	}

	updated, err := h.users.UpdateUser(ctx, id, in)
	if err != nil {
		h.fail(w, "users.update.fail", err)
		return
	}

	// Deactivation kills every outstanding session immediately instead of
	// waiting for the next refresh to notice the inactive principal.
	if current.IsActive && !updated.IsActive {
		if err := h.sessions.RevokeAll(ctx, time.Now().UTC(), id); err != nil {
			h.log.Error("users.update.revoke_all.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	h.log.Info("users.update.ok", "user_id", id)
	writeJSON(w, http.StatusOK, registerUserResponse{User: toUserResponse(updated)})
}

func (h *Users) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireAdmin(w, r) {
		return
	}

	id := r.PathValue("id")
	ctx := r.Context()

	if _, err := h.users.GetUserByID(ctx, id); err != nil {
		h.fail(w, "users.delete.fail", err)
		return
	}

	// Sessions die before the row does; the row delete then cascades the
	// token records and the revocation stamp.
	if err := h.sessions.RevokeAll(ctx, time.Now().UTC(), id); err != nil {
		h.log.Error("users.delete.revoke_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if err := h.users.DeleteUser(ctx, id); err != nil {
		h.fail(w, "users.delete.fail", err)
		return
	}

	h.log.Info("users.delete.ok", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

func (h *Users) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := authenticateRequest(w, r, h.sessions)
	if !ok {
		return false
	}
	if claims.Role != identity.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		return false
	}
	return true
}

func (h *Users) requireAdminOrSelf(w http.ResponseWriter, r *http.Request, id string) (session.Claims, bool) {
	claims, ok := authenticateRequest(w, r, h.sessions)
	if !ok {
		return session.Claims{}, false
	}
	if claims.Role != identity.RoleAdmin && claims.Subject != id {
		writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		return session.Claims{}, false
	}
	return claims, true
}

func (h *Users) fail(w http.ResponseWriter, event string, err error) {
	switch {
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case identity.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
