package identity

import (
	"context"
	"time"
)

// Role values stored on a user row.
const (
	RoleAdmin    = "Admin"
	RoleCustomer = "Customer"
)

// User is the principal owning catalog data and sessions.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      string
	IsActive  bool
	CreatedAt time.Time
}

// UserAuth pairs a user with its stored password hash for login checks.
// The hash never leaves the auth path.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput is the registration payload.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string

	// Now is injectable for tests; zero means time.Now().UTC().
	Now time.Time
}

// UpdateUserInput carries the mutable user fields.
type UpdateUserInput struct {
	Username string
	Email    string
	Role     string
	IsActive bool
}

// Store abstracts user persistence.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
	GetUserAuthByID(ctx context.Context, id string) (UserAuth, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error)
	DeleteUser(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, now time.Time) error
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
