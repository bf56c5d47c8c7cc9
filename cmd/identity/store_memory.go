package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by unit tests and the no-DB dev mode.
// It mirrors the Postgres store's error mapping.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*memUser
}

type memUser struct {
	user         User
	passwordHash string
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*memUser)}
}

// CreateUser creates a new user with a hashed password.
func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username and email are required"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = RoleCustomer
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if NormalizeUsername(u.user.Username) == NormalizeUsername(username) {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		if NormalizeEmail(u.user.Email) == NormalizeEmail(email) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}

	u := User{
		ID:        id,
		Username:  username,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
	}
	s.users[id] = &memUser{user: u, passwordHash: pwHash}
	return u, nil
}

// GetUserByID loads a user by ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	return u.user, nil
}

// GetUserByUsername loads a user by normalized username.
func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	norm := NormalizeUsername(username)
	for _, u := range s.users {
		if NormalizeUsername(u.user.Username) == norm {
			return u.user, nil
		}
	}
	return User{}, OpError{Op: "identity.GetUserByUsername", Kind: ErrNotFound}
}

// GetUserAuthByEmail loads a user plus password hash by normalized email.
func (s *MemoryStore) GetUserAuthByEmail(_ context.Context, email string) (UserAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	norm := NormalizeEmail(email)
	for _, u := range s.users {
		if NormalizeEmail(u.user.Email) == norm {
			return UserAuth{User: u.user, PasswordHash: u.passwordHash}, nil
		}
	}
	return UserAuth{}, OpError{Op: "identity.GetUserAuthByEmail", Kind: ErrNotFound}
}

// GetUserAuthByID loads a user plus password hash by ID.
func (s *MemoryStore) GetUserAuthByID(_ context.Context, id string) (UserAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return UserAuth{}, OpError{Op: "identity.GetUserAuthByID", Kind: ErrNotFound}
	}
	return UserAuth{User: u.user, PasswordHash: u.passwordHash}, nil
}

// ListUsers returns all users ordered by ID.
func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateUser updates the mutable user fields.
func (s *MemoryStore) UpdateUser(_ context.Context, id string, in UpdateUserInput) (User, error) {
	const op = "identity.UpdateUser"

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username and email are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	for otherID, other := range s.users {
		if otherID == id {
			continue
		}
		if NormalizeUsername(other.user.Username) == NormalizeUsername(username) {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		if NormalizeEmail(other.user.Email) == NormalizeEmail(email) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}

	u.user.Username = username
	u.user.Email = email
	u.user.Role = in.Role
	u.user.IsActive = in.IsActive
	return u.user, nil
}

// DeleteUser removes a user.
func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return OpError{Op: "identity.DeleteUser", Kind: ErrNotFound}
	}
	delete(s.users, id)
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *MemoryStore) UpdatePassword(_ context.Context, id string, passwordHash string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return OpError{Op: "identity.UpdatePassword", Kind: ErrNotFound}
	}
	u.passwordHash = passwordHash
	return nil
}

// UsernameExists reports whether a normalized username is taken.
func (s *MemoryStore) UsernameExists(_ context.Context, username string) (bool, error) {
	_, err := s.GetUserByUsername(context.Background(), username)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// EmailExists reports whether a normalized email is taken.
func (s *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	_, err := s.GetUserAuthByEmail(context.Background(), email)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// SetActive toggles the active flag directly; test helper.
func (s *MemoryStore) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.user.IsActive = active
	}
}
