package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Sup3rSecret!", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "Sup3rSecret!", hash)

	assert.True(t, VerifyPassword(hash, "Sup3rSecret!"))
	assert.False(t, VerifyPassword(hash, "sup3rsecret!"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashPasswordRejectsShort(t *testing.T) {
	_, err := HashPassword("short", 4)
	require.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("Sup3rSecret!", 4)
	require.NoError(t, err)
	b, err := HashPassword("Sup3rSecret!", 4)
	require.NoError(t, err)
	// bcrypt embeds a random salt, so equal inputs never collide.
	assert.NotEqual(t, a, b)
}

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		valid    bool
		minErrs  int
	}{
		{"strong", "C0rrect-horse!", true, 0},
		{"too short", "Ab1!", false, 1},
		{"no upper", "c0rrect-horse!", false, 1},
		{"no digit or symbol", "CorrectHorse", false, 2},
		{"common", "password", false, 1},
		{"everything wrong", "abc", false, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidatePasswordStrength(tc.password)
			assert.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				assert.Empty(t, res.Errors)
			} else {
				assert.GreaterOrEqual(t, len(res.Errors), tc.minErrs)
			}
		})
	}
}

func TestValidatePasswordStrengthReportsAllViolations(t *testing.T) {
	// A weak password must come back with the full checklist, not just
	// the first failure.
	res := ValidatePasswordStrength("ab")
	require.False(t, res.Valid)
	assert.GreaterOrEqual(t, len(res.Errors), 4)
}

func TestGenerateSecureToken(t *testing.T) {
	tok, err := GenerateSecureToken(16)
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	_, err = hex.DecodeString(tok)
	assert.NoError(t, err)

	other, err := GenerateSecureToken(16)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}
