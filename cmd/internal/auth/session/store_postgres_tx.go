package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// revokeIfActiveTx locks the token row, checks the revoked state under the
// lock, and flips the flag. Exactly one of N concurrent callers observes the
// record unrevoked. The owner's revoke-all stamp counts as revoked here, so a
// record that slipped past a bulk revoke can never win a rotation.
func revokeIfActiveTx(ctx context.Context, tx pgx.Tx, tokenValue string) (Record, error) {
	var rec Record

	err := tx.QueryRow(ctx, `
		SELECT t.token, t.user_id, t.issued_at, t.expires_at, t.last_activity_at,
		       t.revoked OR t.issued_at < COALESCE(r.revoked_before, '-infinity')
		FROM vb.jwt_tokens t
		LEFT JOIN vb.session_revocations r ON r.user_id = t.user_id
		WHERE t.token = $1
		FOR UPDATE OF t
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

	if rec.Revoked {
		return Record{}, ErrTokenRevoked
	}

	if _, err := tx.Exec(ctx, `
		UPDATE vb.jwt_tokens
		SET revoked = TRUE
		WHERE token = $1
	`, tokenValue); err != nil {
		return Record{}, err
	}

	return rec, nil
}
