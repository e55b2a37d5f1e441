package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/bravethingsbooks/platform-api/internal/handler"    // handlers that implement business logic
	"github.com/bravethingsbooks/platform-api/internal/middleware" // middleware for JWT authentication and role enforcement
	"github.com/bravethingsbooks/platform-api/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while session-protected endpoints reuse the same group behind JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout does not require JWT middleware: the handler accepts either a
	// Bearer access token (revoke all sessions) or a refresh token in the
	// body (revoke one session).
	g.POST("/logout", a.Logout)
	// Verify confirms the Bearer session and returns the current user.
	// Invalid tokens get a 401 failure response which the client treats as
	// "not authenticated" and purges the token from its storage.
	g.GET("/verify", a.Verify, middleware.JWTAuth(jwtSecret))
}

// RegisterBookAccess wires the external book access protocol.  Token
// issuance requires a platform session; validation and the sync endpoints
// are called by the external renderer and authenticate via the book-access
// token carried in the request body, so no session middleware applies.
func RegisterBookAccess(e *echo.Echo, b *handler.BookAccessHandler, p *handler.ProgressHandler, a *handler.AnalyticsHandler, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	g := e.Group("/v1/book-access")

	// Session-authenticated: exchanging a login for a book token.
	g.POST("/generate-token", b.GenerateToken, middleware.JWTAuth(jwtSecret))
	// Session-authenticated: the caller's library and the platform UI
	// reading back progress.
	g.GET("/purchases", b.ListPurchases, middleware.JWTAuth(jwtSecret))
	g.GET("/progress/:userId/:bookId", p.GetProgress, middleware.JWTAuth(jwtSecret))

	// Called by the external renderer with the book token.
	g.POST("/validate-token", b.ValidateToken)
	g.POST("/validate-enhanced", b.ValidateEnhanced)
	g.POST("/update-progress", p.UpdateProgress)
	g.POST("/delete-bookmark", p.DeleteBookmark)
	g.POST("/analytics/track", a.Track)
	g.POST("/analytics/end-session", a.EndSession)

	// Admin dashboard aggregate, cached in Redis.
	g.GET("/analytics/summary", a.Summary,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		cacheMW)
}

// RegisterAdmin registers the admin settings endpoints.  Only admins can
// read or change platform settings such as the book-access token expiry.
func RegisterAdmin(e *echo.Echo, s *handler.AdminSettingsHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	g.GET("/settings", s.Get)
	g.PUT("/settings", s.Update)
}
