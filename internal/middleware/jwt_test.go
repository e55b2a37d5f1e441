package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

const testSecret = "test-secret"

func runProtected(t *testing.T, mw echo.MiddlewareFunc, authHeader string, prime func(echo.Context)) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if prime != nil {
		prime(c)
	}
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, handler(c))
	return rec, c
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 42, model.RoleAdmin, 15)
	require.NoError(t, err)

	rec, c := runProtected(t, JWTAuth(testSecret), "Bearer "+at.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), c.Get("user_id"))
	assert.Equal(t, model.RoleAdmin, c.Get("role"))
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer garbage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := runProtected(t, JWTAuth(testSecret), tc.header, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 42, model.RoleUser, 15)
	require.NoError(t, err)

	rec, _ := runProtected(t, JWTAuth(testSecret), "Bearer "+at.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsBookAccessToken(t *testing.T) {
	// Book tokens share the signing secret but carry a typ claim and must
	// never pass as a session credential.
	raw, err := utils.NewBookAccessToken(testSecret, 42, "brave-bear", 1, []string{model.PermRead}, nil)
	require.NoError(t, err)

	rec, _ := runProtected(t, JWTAuth(testSecret), "Bearer "+raw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	setRole := func(role string) func(echo.Context) {
		return func(c echo.Context) { c.Set("role", role) }
	}

	rec, _ := runProtected(t, RequireRole(model.RoleAdmin), "", setRole(model.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = runProtected(t, RequireRole(model.RoleAdmin), "", setRole(model.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = runProtected(t, RequireRole(model.RoleAdmin, model.RolePreview), "", setRole(model.RolePreview))
	assert.Equal(t, http.StatusOK, rec.Code)

	// No role in context at all.
	rec, _ = runProtected(t, RequireRole(model.RoleAdmin), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
