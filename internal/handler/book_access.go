package handler

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

// PurchaseStore answers whether a user currently owns a book and lists
// their library.
type PurchaseStore interface {
	ActiveForUserBook(ctx context.Context, userID uint64, bookID string) (model.Purchase, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Purchase, error)
}

// BookTokenStore is the shared lookup-then-create table behind idempotent
// token reissue.
type BookTokenStore interface {
	FindActive(ctx context.Context, userID uint64, bookID string) (model.BookAccessToken, error)
	Store(ctx context.Context, t model.BookAccessToken) error
	PurgeExpired(ctx context.Context) error
}

// SettingsReader exposes the admin-configured knobs the token service
// reads per request.
type SettingsReader interface {
	GetInt(ctx context.Context, key string, def int) int
	Get(ctx context.Context, key string) (string, error)
}

// BookmarkReader lists a user's bookmarks for the enhanced validation
// response.
type BookmarkReader interface {
	ListForUserBook(ctx context.Context, userID uint64, bookID string) ([]model.Bookmark, error)
}

// ProgressReader fetches the progress snapshot for the enhanced
// validation response.
type ProgressReader interface {
	Get(ctx context.Context, userID uint64, bookID string) (model.ReadingProgress, error)
}

// SessionOpener creates the reading session row minted by enhanced
// validation.
type SessionOpener interface {
	Create(ctx context.Context, s model.ReadingSession) error
}

// BookAccessHandler implements the token-based external book access
// protocol: entitlement-gated issuance with idempotent reissue, and
// fail-closed validation for the external renderer.
type BookAccessHandler struct {
	Cfg        config.Config
	Users      UserStore
	Purchases  PurchaseStore
	BookTokens BookTokenStore
	Settings   SettingsReader
	Bookmarks  BookmarkReader
	Progress   ProgressReader
	Sessions   SessionOpener
}

func NewBookAccessHandler(cfg config.Config, users UserStore, purchases PurchaseStore, tokens BookTokenStore, settings SettingsReader, bookmarks BookmarkReader, progress ProgressReader, sessions SessionOpener) *BookAccessHandler {
	return &BookAccessHandler{
		Cfg:        cfg,
		Users:      users,
		Purchases:  purchases,
		BookTokens: tokens,
		Settings:   settings,
		Bookmarks:  bookmarks,
		Progress:   progress,
		Sessions:   sessions,
	}
}

// ----- DTOs -----

type generateTokenReq struct {
	BookID      string `json:"bookId"`
	ReturnURL   string `json:"returnUrl"`
	ReturnLabel string `json:"returnLabel"`
}

type generateTokenResp struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expiresAt"` // null when the token never expires
	BookURL   string     `json:"bookUrl"`
}

type validateTokenReq struct {
	Token       string `json:"token"`
	BookID      string `json:"bookId"`
	DeviceType  string `json:"deviceType"`
	ReturnURL   string `json:"returnUrl"`
	ReturnLabel string `json:"returnLabel"`
}

type returnInfo struct {
	ReturnURL   string `json:"returnUrl"`
	ReturnLabel string `json:"returnLabel"`
	Platform    string `json:"platform"`
}

// invalidToken is the single fail-closed shape for every validation
// failure.  No detail about why the token was rejected leaks to the
// uncontrolled external origin.
func invalidToken(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"valid": false})
}

// GenerateToken exchanges a platform session for a scoped book-access
// token.  Requires an active purchase; while a previously issued token for
// the same (user, book) pair is still valid, that token is returned
// unchanged so external trackers see a stable identifier across the
// reading session.
func (h *BookAccessHandler) GenerateToken(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	var req generateTokenReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.BookID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bookId required"})
	}
	bookID := strings.TrimSpace(req.BookID)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	purchase, err := h.Purchases.ActiveForUserBook(ctx, uid, bookID)
	if err != nil {
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "book not purchased"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "entitlement check failed"})
	}

	// Idempotent reissue: an unexpired token for this pair is returned
	// as-is rather than minting a new one.
	if existing, err := h.BookTokens.FindActive(ctx, uid, bookID); err == nil {
		return c.JSON(http.StatusOK, generateTokenResp{
			Success:   true,
			Token:     existing.Token,
			ExpiresAt: existing.ExpiresAt,
			BookURL:   h.buildBookURL(ctx, existing.BookID, existing.Token, req.ReturnURL, req.ReturnLabel),
		})
	} else if err != repository.ErrNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "token lookup failed"})
	}

	// Expiry comes from the admin setting; 0 days is the documented
	// sentinel for "never expires" (book tokens only, never sessions).
	expiryDays := h.Settings.GetInt(ctx, model.SettingBookExpiryDays, h.Cfg.BookExpiryDays)
	var expiresAt *time.Time
	if expiryDays > 0 {
		t := time.Now().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour)
		expiresAt = &t
	}

	perms := []string{model.PermRead, model.PermBookmark, model.PermProgress}
	token, err := utils.NewBookAccessToken(h.Cfg.JWTSecret, uid, bookID, purchase.ID, perms, expiresAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "issue token failed"})
	}
	if err := h.BookTokens.Store(ctx, model.BookAccessToken{
		UserID:     uid,
		BookID:     bookID,
		PurchaseID: purchase.ID,
		Token:      token,
		ExpiresAt:  expiresAt,
	}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save token failed"})
	}
	// Opportunistic cleanup of rows that can no longer validate.
	_ = h.BookTokens.PurgeExpired(ctx)

	return c.JSON(http.StatusOK, generateTokenResp{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		BookURL:   h.buildBookURL(ctx, bookID, token, req.ReturnURL, req.ReturnLabel),
	})
}

// ListPurchases returns the caller's library: every purchase whose access
// has not lapsed can be exchanged for a book token.
func (h *BookAccessHandler) ListPurchases(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	purchases, err := h.Purchases.ListForUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "list purchases failed"})
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "purchases": purchases})
}

// buildBookURL embeds the token plus return-navigation parameters so the
// external renderer can verify the issuing platform and offer a "back to
// platform" affordance.
func (h *BookAccessHandler) buildBookURL(ctx context.Context, bookID, token, returnURL, returnLabel string) string {
	base := h.Cfg.ReaderBaseURL
	if v, err := h.Settings.Get(ctx, model.SettingReaderBaseURL); err == nil && v != "" {
		base = v
	}
	if returnURL == "" {
		returnURL = h.Cfg.ReturnURL
	}
	if returnLabel == "" {
		returnLabel = "Back to Brave Things Books"
	}
	v := url.Values{}
	v.Set("token", token)
	v.Set("platform", model.PlatformName)
	v.Set("returnUrl", returnURL)
	v.Set("returnLabel", returnLabel)
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bookID) + "?" + v.Encode()
}

// ValidateToken checks signature, expiry and book scope of a token
// presented by the external renderer.  Every failure is the same
// {valid:false} body: this endpoint is called by an uncontrolled origin
// and must never throw past the HTTP boundary.
func (h *BookAccessHandler) ValidateToken(c echo.Context) error {
	var req validateTokenReq
	if err := c.Bind(&req); err != nil {
		return invalidToken(c)
	}
	claims, ok := h.checkToken(req)
	if !ok {
		return invalidToken(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := echo.Map{
		"valid":       true,
		"userId":      claims.UserID,
		"bookId":      claims.BookID,
		"permissions": claims.Permissions,
	}
	if u, err := h.Users.GetByID(ctx, claims.UserID); err == nil {
		resp["user"] = toUserPart(u)
	}
	return c.JSON(http.StatusOK, resp)
}

// ValidateEnhanced is ValidateToken plus everything the renderer needs to
// restore a reading session in one round trip: current bookmarks, the
// progress snapshot, a freshly minted analytics session id, and the
// return-navigation info echoed back so a reload can rebuild the return
// button without the original URL.
func (h *BookAccessHandler) ValidateEnhanced(c echo.Context) error {
	var req validateTokenReq
	if err := c.Bind(&req); err != nil {
		return invalidToken(c)
	}
	claims, ok := h.checkToken(req)
	if !ok {
		return invalidToken(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := echo.Map{
		"valid":       true,
		"userId":      claims.UserID,
		"bookId":      claims.BookID,
		"permissions": claims.Permissions,
	}
	if u, err := h.Users.GetByID(ctx, claims.UserID); err == nil {
		resp["user"] = toUserPart(u)
	}

	if bm, err := h.Bookmarks.ListForUserBook(ctx, claims.UserID, claims.BookID); err == nil {
		resp["bookmarks"] = bm
	} else {
		log.Printf("book-access: list bookmarks failed for user=%d book=%s: %v", claims.UserID, claims.BookID, err)
		resp["bookmarks"] = []model.Bookmark{}
	}

	if p, err := h.Progress.Get(ctx, claims.UserID, claims.BookID); err == nil {
		resp["progress"] = p
	} else if err != repository.ErrNotFound {
		log.Printf("book-access: load progress failed for user=%d book=%s: %v", claims.UserID, claims.BookID, err)
	}

	// Open the reading session.  Session creation is telemetry, not
	// access control: a failure is logged and the renderer still gets in.
	sessionID, err := utils.GenerateSecureToken(16)
	if err == nil {
		s := model.ReadingSession{ID: sessionID, UserID: claims.UserID, BookID: claims.BookID}
		if dt := strings.TrimSpace(req.DeviceType); dt != "" {
			s.DeviceType = &dt
		}
		if err := h.Sessions.Create(ctx, s); err != nil {
			log.Printf("book-access: open reading session failed for user=%d book=%s: %v", claims.UserID, claims.BookID, err)
			sessionID = ""
		}
	}
	if sessionID != "" {
		resp["analytics_session_id"] = sessionID
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = h.Cfg.ReturnURL
	}
	returnLabel := req.ReturnLabel
	if returnLabel == "" {
		returnLabel = "Back to Brave Things Books"
	}
	resp["return_info"] = returnInfo{ReturnURL: returnURL, ReturnLabel: returnLabel, Platform: model.PlatformName}

	return c.JSON(http.StatusOK, resp)
}

// checkToken decodes the token and verifies its book scope against the
// requested book.
func (h *BookAccessHandler) checkToken(req validateTokenReq) (utils.BookClaims, bool) {
	if strings.TrimSpace(req.Token) == "" || strings.TrimSpace(req.BookID) == "" {
		return utils.BookClaims{}, false
	}
	claims, err := utils.ParseBookAccessToken(h.Cfg.JWTSecret, req.Token)
	if err != nil {
		return utils.BookClaims{}, false
	}
	if claims.BookID != strings.TrimSpace(req.BookID) {
		return utils.BookClaims{}, false
	}
	if !claims.HasPermission(model.PermRead) {
		return utils.BookClaims{}, false
	}
	return claims, true
}
