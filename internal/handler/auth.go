package handler

import (
	"context"      // provides context with cancellation for DB calls
	"database/sql" // SQL sentinel errors
	"net/http"     // HTTP status codes and primitives
	"net/mail"     // RFC 5322 address parsing for email validation
	"strconv"      // string-to-int conversion
	"strings"      // string manipulation utilities
	"time"         // timeouts for DB calls

	"github.com/golang-jwt/jwt/v5" // JSON Web Token library for parsing access tokens
	"github.com/labstack/echo/v4"  // Echo framework for HTTP routing

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/limiter"
	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

// UserStore is the slice of the user repository the auth handler needs.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// RefreshStore persists refresh token hashes.
type RefreshStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   UserStore
	Tokens  RefreshStore
	Lockout *limiter.Limiter
}

func NewAuthHandler(cfg config.Config, u UserStore, t RefreshStore, l *limiter.Limiter) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Lockout: l}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	Success bool      `json:"success"`
	User    userPart  `json:"user"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	Refresh tokenPart `json:"refresh"`
}

// Register: validate, create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "name/email/password required"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid email"})
	}
	if strength := utils.ValidatePasswordStrength(req.Password); !strength.Valid {
		// All violated rules at once so the UI can show a checklist.
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "weak password", "details": strength.Errors})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"success": false, "error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "create user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, model.RoleUser, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save refresh failed"})
	}

	return c.JSON(http.StatusCreated, authResp{
		Success: true,
		User:    userPart{ID: uid, Email: req.Email, Name: req.Name, Role: model.RoleUser, Subscription: model.SubscriptionFree},
		Token:   access.Token,
		Expires: access.Exp,
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Login: lockout check first, then verify and return a new pair.  The
// credential error is deliberately identical for unknown email and wrong
// password so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if res := h.Lockout.Check(ctx, req.Email); !res.Allowed {
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"success":     false,
			"error":       "too many failed attempts",
			"message":     res.Message,
			"lockout_end": res.LockoutEnd,
		})
	}

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			h.Lockout.RecordFailure(ctx, req.Email)
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		h.Lockout.RecordFailure(ctx, req.Email)
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid credentials"})
	}
	h.Lockout.Reset(ctx, req.Email)

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		User:    toUserPart(u),
		Token:   access.Token,
		Expires: access.Exp,
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Verify confirms the Bearer session token and returns the current user.
// JWTAuth has already rejected expired, malformed and mis-signed tokens
// with a 401 failure response; what remains is checking that the account
// behind the claims still exists and is active.
func (h *AuthHandler) Verify(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "load user failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserPart(u)})
}

// Refresh: validate by hash, revoke old, issue new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)
	hash := utils.HashRefreshRaw(raw)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "load user failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue access failed"})
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(newRef.Raw), newRef.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Success: true,
		User:    toUserPart(u),
		Token:   access.Token,
		Expires: access.Exp,
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout supports two modes: revoking a specific refresh token, or
// revoking every refresh token for the user identified by a Bearer access
// token.  The Authorization header is parsed here directly so the
// endpoint also works for clients whose access token middleware state is
// gone but whose refresh token survives.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	hasBearer := false
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		rawToken := strings.TrimPrefix(authHeader, "Bearer ")
		tok, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, echo.ErrUnauthorized
			}
			return []byte(h.Cfg.JWTSecret), nil
		})
		if err == nil && tok.Valid {
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				switch subVal := claims["sub"].(type) {
				case float64:
					uid = uint64(subVal)
					hasBearer = true
				case string:
					if parsed, err := strconv.ParseUint(subVal, 10, 64); err == nil {
						uid = parsed
						hasBearer = true
					}
				}
			}
		}
	}

	// Invalid JSON simply leaves req.RefreshToken empty; the Authorization
	// header might still suffice for revoking all tokens.
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if hasBearer && refreshToken == "" {
		if uid == 0 {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}
