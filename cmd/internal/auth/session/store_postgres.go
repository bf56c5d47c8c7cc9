package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (vb.jwt_tokens).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed token store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert persists a new token record.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vb.jwt_tokens (
			token, user_id, issued_at, expires_at, last_activity_at, revoked
		) VALUES ($1, $2, $3, $4, $5, FALSE)
	`, rec.Token, rec.UserID, rec.IssuedAt, rec.ExpiresAt, rec.LastActivityAt)
	return err
}

// Get loads a token record by token value. The reported revoked state folds
// in the owner's revoke-all stamp: a row whose issued_at predates the stamp is
// revoked even if its own flag was never flipped.
func (s *PostgresStore) Get(ctx context.Context, tokenValue string) (Record, error) {
	var rec Record

	err := s.pool.QueryRow(ctx, `
		SELECT t.token, t.user_id, t.issued_at, t.expires_at, t.last_activity_at,
		       t.revoked OR t.issued_at < COALESCE(r.revoked_before, '-infinity')
		FROM vb.jwt_tokens t
		LEFT JOIN vb.session_revocations r ON r.user_id = t.user_id
		WHERE t.token = $1
	`, tokenValue).Scan(
		&rec.Token,
		&rec.UserID,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.LastActivityAt,
		&rec.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrTokenNotFound
	}
	if err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Touch sets last_activity_at for a non-revoked record.
// Missing or revoked tokens match zero rows, which is the intended no-op.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, tokenValue string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE vb.jwt_tokens t
		SET last_activity_at = $2
		WHERE t.token = $1 AND NOT t.revoked
		  AND t.issued_at >= COALESCE((
			SELECT r.revoked_before FROM vb.session_revocations r WHERE r.user_id = t.user_id
		  ), '-infinity')
	`, tokenValue, now)
	return err
}

// Revoke marks a record revoked (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, tokenValue string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE vb.jwt_tokens
		SET revoked = TRUE
		WHERE token = $1 AND NOT revoked
	`, tokenValue)
	return err
}

// RevokeIfActive atomically revokes the record and returns its prior state.
// The row lock taken by the conditional update serializes concurrent rotations
// of the same token: the loser sees zero rows and gets ErrTokenRevoked.
func (s *PostgresStore) RevokeIfActive(ctx context.Context, tokenValue string) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := revokeIfActiveTx(ctx, tx, tokenValue)
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RevokeAllForUser revokes every record owned by userID. The flag update
// kills the rows visible in this snapshot; the stamp fences inserts that
// commit afterwards (a login that verified the old password and lands its row
// after the UPDATE still reads back revoked from Get). Stamps only ever move
// forward.
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, now time.Time, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO vb.session_revocations (user_id, revoked_before)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET revoked_before = GREATEST(vb.session_revocations.revoked_before, EXCLUDED.revoked_before)
	`, userID, now); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE vb.jwt_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND NOT revoked
	`, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteExpired removes expired or revoked records.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM vb.jwt_tokens
		WHERE expires_at < $1 OR revoked
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
