package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the user store (default "vb").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "vb",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return `"` + s.schema + `"."users"`
}

const userColumns = `id, username, email, role, is_active, created_at`

// CreateUser creates a new user row with a hashed password.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.users()+` (
			id, username, username_norm, email, email_norm,
			role, is_active, password_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $8)
	`, id, username, NormalizeUsername(username), email, NormalizeEmail(email), role, pwHash, now)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:        id,
		Username:  username,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByUsername loads a user by normalized username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, `WHERE username_norm = $1`, NormalizeUsername(username))
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM `+s.users()+`
		`+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: "identity.getUser", Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByEmail loads a user plus password hash by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.getUserAuth(ctx, `WHERE email_norm = $1`, NormalizeEmail(email))
}

// GetUserAuthByID loads a user plus password hash by ID.
func (s *PostgresStore) GetUserAuthByID(ctx context.Context, id string) (UserAuth, error) {
	return s.getUserAuth(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUserAuth(ctx context.Context, where string, arg any) (UserAuth, error) {
	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM `+s.users()+`
		`+where,
		arg,
	).Scan(
		&ua.User.ID, &ua.User.Username, &ua.User.Email, &ua.User.Role,
		&ua.User.IsActive, &ua.User.CreatedAt, &ua.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, OpError{Op: "identity.getUserAuth", Kind: ErrNotFound}
	}
	if err != nil {
		return UserAuth{}, err
	}
	return ua, nil
}

// ListUsers returns all users ordered by creation.
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM `+s.users()+`
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser updates the mutable user fields and returns the stored row.
func (s *PostgresStore) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (User, error) {
	const op = "identity.UpdateUser"

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username and email are required"}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET username = $2, username_norm = $3,
		    email = $4, email_norm = $5,
		    role = $6, is_active = $7,
		    updated_at = now()
		WHERE id = $1
	`, id, username, NormalizeUsername(username), email, NormalizeEmail(email), in.Role, in.IsActive)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}

	return s.GetUserByID(ctx, id)
}

// DeleteUser removes a user row. Missing rows map to ErrNotFound.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.users()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "identity.DeleteUser", Kind: ErrNotFound}
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id string, passwordHash string, now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "identity.UpdatePassword", Kind: ErrNotFound}
	}
	return nil
}

// UsernameExists reports whether a normalized username is taken.
func (s *PostgresStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `username_norm`, NormalizeUsername(username))
}

// EmailExists reports whether a normalized email is taken.
func (s *PostgresStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `email_norm`, NormalizeEmail(email))
}

func (s *PostgresStore) exists(ctx context.Context, column, value string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM `+s.users()+` WHERE `+column+` = $1)
	`, value).Scan(&exists)
	return exists, err
}

// classifyUniqueViolation maps a Postgres unique violation to a logical field name.
func classifyUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "username"):
		return "username", true
	case strings.Contains(pgErr.ConstraintName, "email"):
		return "email", true
	default:
		return "unique", true
	}
}
