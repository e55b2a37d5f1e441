package model

import "time"

// Book is a published title in the catalog.  Books are addressed by a
// short slug (e.g. "wtbtg") everywhere in the API because the external
// renderer builds its asset paths from the same identifier.
//
// Fields:
//
//	ID        – slug identifier of the book.
//	Title     – display title.
//	IsActive  – whether the book can currently be opened.
//	CreatedAt – creation timestamp.
type Book struct {
	ID        string    // books.id
	Title     string    // books.title
	IsActive  bool      // books.is_active
	CreatedAt time.Time // books.created_at
}

// Purchase links a user to a book they own.  A row is created when
// checkout completes (outside this service) and is the precondition for
// issuing a book-access token.  A null AccessExpires means permanent
// access.
//
// Fields:
//
//	ID            – primary key identifier.
//	UserID        – purchasing user.
//	BookID        – purchased book slug.
//	PaymentRef    – external payment reference, if any.
//	PurchasedAt   – checkout completion timestamp.
//	AccessExpires – when access lapses (null = permanent).
type Purchase struct {
	ID            uint64     // purchases.id
	UserID        uint64     // purchases.user_id
	BookID        string     // purchases.book_id
	PaymentRef    *string    // purchases.payment_ref (nullable)
	PurchasedAt   time.Time  // purchases.purchased_at
	AccessExpires *time.Time // purchases.access_expires (nullable)
}
