package model

import "time"

// Role names stored in users.role and carried in the JWT "role" claim.
// They are checked once at the service boundary (JWT middleware plus
// RequireRole) rather than re-derived ad hoc by every consumer.
const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RolePreview = "preview"
)

// Subscription tier values stored in users.subscription_status.
const (
	SubscriptionFree    = "free"
	SubscriptionPremium = "premium"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address (stored lower-cased).
//	PasswordHash – bcrypt hashed password.
//	Name         – display name shown in the reader and dashboard.
//	Role         – role name (user, admin or preview).
//	Subscription – subscription tier (free or premium).
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         string    // users.name
	Role         string    // users.role
	Subscription string    // users.subscription_status
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry and
// revocation.  The plain token is not stored; only its SHA-256 hash.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the token.
//	TokenHash – SHA-256 hex digest of the token value.
//	ExpiresAt – expiration timestamp of the token.
//	RevokedAt – when the token was revoked (null if still active).
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
