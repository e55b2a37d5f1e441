package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"  // hex encoding for token digests
	"errors"        // sentinel errors for token validation
	"time"          // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT session token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Session tokens are short-lived and encoded
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived token used to obtain new session
// tokens.  The Raw field contains the raw token string returned to the
// client.  In the database only a SHA-256 hash of the raw string is stored.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a platform session.  The
// claims are: subject (sub = user id), role, expiration (exp) and issued at
// (iat).  Session tokens always expire, regardless of the book-access
// expiry setting.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.  Refresh tokens live longer than access tokens and
// are exchanged for new access tokens.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := GenerateSecureToken(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.  Storing only the hash prevents attackers from using stolen
// database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// bookTokenType is the "typ" claim that distinguishes book-access tokens
// from session tokens signed with the same secret.
const bookTokenType = "book_access"

// ErrInvalidBookToken is returned for any malformed, expired or
// mis-scoped book-access token.  Callers translate it into a fail-closed
// {valid:false} response, never a 5xx.
var ErrInvalidBookToken = errors.New("invalid book access token")

// BookClaims are the decoded claims of a book-access token.  A nil
// ExpiresAt means the token was minted under the "never expires" setting
// and carries no exp claim at all.
type BookClaims struct {
	UserID      uint64
	BookID      string
	PurchaseID  uint64
	Permissions []string
	ExpiresAt   *time.Time
}

// NewBookAccessToken signs a scoped HS256 token tying a (user, book,
// purchase) triple to a permission set.  When expiresAt is nil the exp
// claim is omitted entirely; jwt.Parse then skips expiry validation, which
// is exactly the "never expires" behavior the zero-days setting asks for.
func NewBookAccessToken(secret string, userID uint64, bookID string, purchaseID uint64, perms []string, expiresAt *time.Time) (string, error) {
	claims := jwt.MapClaims{
		"typ":         bookTokenType,
		"sub":         userID,
		"book_id":     bookID,
		"purchase_id": purchaseID,
		"perms":       perms,
		"iat":         time.Now().UTC().Unix(),
	}
	if expiresAt != nil {
		claims["exp"] = expiresAt.Unix()
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// ParseBookAccessToken validates signature and expiry and decodes the book
// claims.  Every failure path returns ErrInvalidBookToken: this function is
// reached from an uncontrolled external origin and must fail closed rather
// than leak parser detail.
func ParseBookAccessToken(secret, raw string) (BookClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidBookToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return BookClaims{}, ErrInvalidBookToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return BookClaims{}, ErrInvalidBookToken
	}
	if typ, _ := claims["typ"].(string); typ != bookTokenType {
		return BookClaims{}, ErrInvalidBookToken
	}
	out := BookClaims{}
	switch sub := claims["sub"].(type) {
	case float64:
		out.UserID = uint64(sub)
	default:
		return BookClaims{}, ErrInvalidBookToken
	}
	bookID, _ := claims["book_id"].(string)
	if bookID == "" {
		return BookClaims{}, ErrInvalidBookToken
	}
	out.BookID = bookID
	if pid, ok := claims["purchase_id"].(float64); ok {
		out.PurchaseID = uint64(pid)
	}
	if raw, ok := claims["perms"].([]interface{}); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				out.Permissions = append(out.Permissions, s)
			}
		}
	}
	if exp, ok := claims["exp"].(float64); ok {
		t := time.Unix(int64(exp), 0).UTC()
		out.ExpiresAt = &t
	}
	return out, nil
}

// HasPermission reports whether the claims grant the named permission.
func (c BookClaims) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
