package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/model"
)

// SettingsStore is the read/write settings contract for admin endpoints.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetInt(ctx context.Context, key string, def int) int
	Set(ctx context.Context, key, value string) error
}

// AdminSettingsHandler exposes the platform knobs admins can change at
// runtime, most importantly the book-access token expiry.
type AdminSettingsHandler struct {
	Cfg      config.Config
	Settings SettingsStore
}

func NewAdminSettingsHandler(cfg config.Config, s SettingsStore) *AdminSettingsHandler {
	return &AdminSettingsHandler{Cfg: cfg, Settings: s}
}

type settingsResp struct {
	Success             bool   `json:"success"`
	BookAccessExpiryDay int    `json:"bookAccessExpiryDays"` // 0 = never expires
	ReaderBaseURL       string `json:"readerBaseUrl"`
}

type settingsUpdateReq struct {
	BookAccessExpiryDay *int    `json:"bookAccessExpiryDays"`
	ReaderBaseURL       *string `json:"readerBaseUrl"`
}

// Get returns the current settings with config fallbacks for keys never
// written.
func (h *AdminSettingsHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	base := h.Cfg.ReaderBaseURL
	if v, err := h.Settings.Get(ctx, model.SettingReaderBaseURL); err == nil && v != "" {
		base = v
	}
	return c.JSON(http.StatusOK, settingsResp{
		Success:             true,
		BookAccessExpiryDay: h.Settings.GetInt(ctx, model.SettingBookExpiryDays, h.Cfg.BookExpiryDays),
		ReaderBaseURL:       base,
	})
}

// Update applies a partial settings change.  Expiry accepts 0 as the
// documented "never expires" sentinel but rejects negatives.
func (h *AdminSettingsHandler) Update(c echo.Context) error {
	var req settingsUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	if req.BookAccessExpiryDay == nil && req.ReaderBaseURL == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "no settings provided"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.BookAccessExpiryDay != nil {
		if *req.BookAccessExpiryDay < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bookAccessExpiryDays must be >= 0"})
		}
		if err := h.Settings.Set(ctx, model.SettingBookExpiryDays, strconv.Itoa(*req.BookAccessExpiryDay)); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save setting failed"})
		}
	}
	if req.ReaderBaseURL != nil {
		base := strings.TrimSpace(*req.ReaderBaseURL)
		if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "readerBaseUrl must be absolute"})
		}
		if err := h.Settings.Set(ctx, model.SettingReaderBaseURL, base); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save setting failed"})
		}
	}
	return h.Get(c)
}
