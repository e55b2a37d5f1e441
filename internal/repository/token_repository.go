package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo backs the platform's session refresh flow.  Only the SHA-256
// hash of a refresh token ever reaches this table; the raw value lives
// solely with the client, so a leaked refresh_tokens row cannot be
// exchanged for a new reading-service session.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh records a freshly issued refresh token hash for the user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// ValidateRefresh resolves a hash to its owning user.  Revoked and expired
// rows are filtered in the query itself, so every rejection surfaces as
// sql.ErrNoRows and the handler answers with the same 401 regardless of
// why the token stopped working.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		  WHERE token_hash=? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()
		  LIMIT 1`,
		tokenHash).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// RevokeByHash retires one refresh token, used on rotation and on the
// single-session form of logout.  Revoking an already-revoked hash is a
// no-op.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForUser retires every live refresh token the user holds, which
// is what the Bearer form of logout means: end all of their sessions.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}
