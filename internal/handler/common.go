package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// currentUserID reads the authenticated user id that JWTAuth stored in
// the context.  ok is false when the route was somehow reached without
// the middleware.
func currentUserID(c echo.Context) (uint64, bool) {
	v := c.Get("user_id")
	id, ok := v.(uint64)
	return id, ok && id > 0
}

// currentRole reads the role claim stored by JWTAuth.
func currentRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// userPart is the user shape returned by auth and validation endpoints.
// The password hash never leaves the repository layer.
type userPart struct {
	ID           uint64 `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Subscription string `json:"subscription_status"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Subscription: u.Subscription}
}
