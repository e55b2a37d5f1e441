package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// PurchaseRepo answers entitlement questions: which books a user owns and
// whether a given purchase still grants access.
type PurchaseRepo struct{ DB *sql.DB }

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{DB: db} }

// ActiveForUserBook returns the most recent purchase of bookID by userID
// that still grants access (access_expires null or in the future).
// Returns ErrForbidden when no such purchase exists, so handlers can map
// it straight to a 403.
func (r *PurchaseRepo) ActiveForUserBook(ctx context.Context, userID uint64, bookID string) (model.Purchase, error) {
	var (
		p             model.Purchase
		paymentRef    sql.NullString
		accessExpires sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, book_id, payment_ref, purchased_at, access_expires
		   FROM purchases
		  WHERE user_id=? AND book_id=?
		    AND (access_expires IS NULL OR access_expires > UTC_TIMESTAMP())
		  ORDER BY purchased_at DESC LIMIT 1`,
		userID, bookID).Scan(&p.ID, &p.UserID, &p.BookID, &paymentRef, &p.PurchasedAt, &accessExpires)
	if err == sql.ErrNoRows {
		return model.Purchase{}, ErrForbidden
	}
	if err != nil {
		return model.Purchase{}, err
	}
	if paymentRef.Valid {
		p.PaymentRef = &paymentRef.String
	}
	if accessExpires.Valid {
		p.AccessExpires = &accessExpires.Time
	}
	return p, nil
}

// ListForUser returns all purchases of a user, newest first.
func (r *PurchaseRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Purchase, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, book_id, payment_ref, purchased_at, access_expires
		   FROM purchases WHERE user_id=? ORDER BY purchased_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Purchase
	for rows.Next() {
		var (
			p             model.Purchase
			paymentRef    sql.NullString
			accessExpires sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.BookID, &paymentRef, &p.PurchasedAt, &accessExpires); err != nil {
			return nil, err
		}
		if paymentRef.Valid {
			p.PaymentRef = &paymentRef.String
		}
		if accessExpires.Valid {
			p.AccessExpires = &accessExpires.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
