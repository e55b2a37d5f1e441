package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned by HashPassword before any hashing work.
var ErrPasswordTooShort = errors.New("password too short")

// commonPasswords is a small denylist of passwords that pass the character
// class checks but are still trivially guessable.
var commonPasswords = map[string]bool{
	"password":    true,
	"password1":   true,
	"password123": true,
	"12345678":    true,
	"123456789":   true,
	"qwerty123":   true,
	"letmein123":  true,
	"iloveyou1":   true,
	"admin123":    true,
	"welcome1":    true,
}

// HashPassword returns a bcrypt hash using the given cost.  bcrypt embeds a
// fresh random salt in every hash, so two calls with the same password
// produce different outputs; equality of hashes is never meaningful, only
// VerifyPassword is.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.  It
// fails closed: a malformed stored hash or any internal error yields false.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordStrength reports every rule a candidate password violates, so the
// UI can render a complete checklist instead of one error at a time.
type PasswordStrength struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidatePasswordStrength checks length, character-class diversity and the
// common-password denylist.  All violations are collected, not fail-fast.
func ValidatePasswordStrength(plain string) PasswordStrength {
	var errs []string
	if len(plain) < MinPasswordLength {
		errs = append(errs, "must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range plain {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper {
		errs = append(errs, "must contain an uppercase letter")
	}
	if !lower {
		errs = append(errs, "must contain a lowercase letter")
	}
	if !digit {
		errs = append(errs, "must contain a digit")
	}
	if !symbol {
		errs = append(errs, "must contain a symbol")
	}
	if commonPasswords[strings.ToLower(plain)] {
		errs = append(errs, "is too common")
	}
	return PasswordStrength{Valid: len(errs) == 0, Errors: errs}
}

// GenerateSecureToken returns a hex-encoded string built from n bytes of
// cryptographically secure random data.  It is used for reading-session
// identifiers, password-reset tokens and refresh tokens.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
