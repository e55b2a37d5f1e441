package middleware // contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer session token
// and injects the token's subject and role claims into the request context.
// The provided secret must match the one used when issuing tokens.  This
// middleware wraps every session-protected route so that handlers can read
// the authenticated user via `c.Get("user_id")` (uint64) and
// `c.Get("role")` (string).  An invalid or expired token always yields a
// 401 failure response, never an uncaught error: the client treats it as
// "not authenticated" and purges the token from its own storage.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with the HS256 signing method and our secret.  The
			// callback supplies the signing key and rejects tokens signed
			// with a different algorithm.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid claims"})
			}

			// Book-access tokens are signed with the same secret but are
			// never a session credential.
			if typ, _ := claims["typ"].(string); typ != "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
			}

			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid claims"})
			}
			role, _ := claims["role"].(string)

			c.Set("user_id", uint64(sub))
			c.Set("role", role)
			return next(c)
		}
	}
}
