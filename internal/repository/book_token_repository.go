package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// BookTokenRepo stores issued book-access tokens so that a repeat
// generate call for the same (user, book) pair can return the existing
// token instead of minting a new one.  The table is shared across server
// instances, which is what keeps the reissue idempotent under a
// multi-process deployment.
type BookTokenRepo struct{ DB *sql.DB }

func NewBookTokenRepo(db *sql.DB) *BookTokenRepo { return &BookTokenRepo{DB: db} }

// FindActive returns the newest unexpired token for (userID, bookID).
// A null expires_at never expires.  ErrNotFound means a fresh token
// should be minted.
func (r *BookTokenRepo) FindActive(ctx context.Context, userID uint64, bookID string) (model.BookAccessToken, error) {
	var (
		t         model.BookAccessToken
		expiresAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, book_id, purchase_id, token, expires_at, created_at
		   FROM book_access_tokens
		  WHERE user_id=? AND book_id=?
		    AND (expires_at IS NULL OR expires_at > UTC_TIMESTAMP())
		  ORDER BY created_at DESC LIMIT 1`,
		userID, bookID).Scan(&t.ID, &t.UserID, &t.BookID, &t.PurchaseID, &t.Token, &expiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.BookAccessToken{}, ErrNotFound
	}
	if err != nil {
		return model.BookAccessToken{}, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return t, nil
}

// Store inserts a newly minted token row.
func (r *BookTokenRepo) Store(ctx context.Context, t model.BookAccessToken) error {
	var expiresAt interface{}
	if t.ExpiresAt != nil {
		expiresAt = *t.ExpiresAt
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO book_access_tokens (user_id, book_id, purchase_id, token, expires_at) VALUES (?,?,?,?,?)",
		t.UserID, t.BookID, t.PurchaseID, t.Token, expiresAt)
	return err
}

// PurgeExpired removes rows whose tokens can no longer validate.  Called
// opportunistically from the generate path; losing the race is harmless.
func (r *BookTokenRepo) PurgeExpired(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM book_access_tokens WHERE expires_at IS NOT NULL AND expires_at <= UTC_TIMESTAMP()")
	return err
}
