package model

import "time"

// Permission names carried in a book-access token's "perms" claim.
const (
	PermRead     = "read"
	PermBookmark = "bookmark"
	PermProgress = "progress"
)

// PlatformName is embedded in every book URL so the external renderer can
// confirm the token was issued by this platform before trusting it.
const PlatformName = "brave-things-books"

// BookAccessToken mirrors the `book_access_tokens` table.  The signed JWT
// itself is the credential handed to the external renderer; the row exists
// so that a second generate call for the same (user, book) pair can return
// the prior token unchanged while it is still valid.  Storing the row in
// the shared database (rather than a per-process cache) keeps the reissue
// idempotent across instances.
//
// Fields:
//
//	ID         – primary key identifier.
//	UserID     – user the token was issued to.
//	BookID     – book slug the token is scoped to.
//	PurchaseID – purchase that entitled the issuance.
//	Token      – the signed JWT string.
//	ExpiresAt  – expiry of the token (null = never expires).
//	CreatedAt  – issuance timestamp.
type BookAccessToken struct {
	ID         uint64     // book_access_tokens.id
	UserID     uint64     // book_access_tokens.user_id
	BookID     string     // book_access_tokens.book_id
	PurchaseID uint64     // book_access_tokens.purchase_id
	Token      string     // book_access_tokens.token
	ExpiresAt  *time.Time // book_access_tokens.expires_at (nullable)
	CreatedAt  time.Time  // book_access_tokens.created_at
}
