package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

// ProgressStore maintains the reading_progress row per (user, book).
type ProgressStore interface {
	Upsert(ctx context.Context, userID uint64, bookID string, chapter, spread int, completion float64, timeSpent int64) (model.ReadingProgress, error)
	Get(ctx context.Context, userID uint64, bookID string) (model.ReadingProgress, error)
}

// BookmarkStore merges, lists and deletes bookmarks.
type BookmarkStore interface {
	AddIfAbsent(ctx context.Context, b model.Bookmark) error
	ListForUserBook(ctx context.Context, userID uint64, bookID string) ([]model.Bookmark, error)
	Delete(ctx context.Context, userID, id uint64) error
}

// ProgressHandler serves the progress sync calls made by the external
// renderer (token-keyed) and by the platform UI (session-keyed).
type ProgressHandler struct {
	Cfg       config.Config
	Progress  ProgressStore
	Bookmarks BookmarkStore
}

func NewProgressHandler(cfg config.Config, p ProgressStore, b BookmarkStore) *ProgressHandler {
	return &ProgressHandler{Cfg: cfg, Progress: p, Bookmarks: b}
}

// ----- DTOs -----

type bookmarkIn struct {
	Page     int             `json:"page"`
	Chapter  *int            `json:"chapter,omitempty"`
	Note     *string         `json:"note,omitempty"`
	Type     string          `json:"type,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type updateProgressReq struct {
	Token          string       `json:"token"`
	Progress       float64      `json:"progress"` // completion percentage 0-100
	CurrentPage    int          `json:"currentPage"`
	CurrentChapter int          `json:"currentChapter"`
	TimeSpent      int64        `json:"timeSpent"` // seconds since the previous report
	Bookmarks      []bookmarkIn `json:"bookmarks,omitempty"`
}

// UpdateProgress applies one progress report from the renderer.  Position
// fields overwrite (last-write-wins by arrival), timeSpent accumulates,
// and embedded bookmarks are merged add-if-absent by page+chapter.  The
// row is keyed by the user id inside the token, so reports sent under
// different tokens for the same user land on the same row.
func (h *ProgressHandler) UpdateProgress(c echo.Context) error {
	var req updateProgressReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	claims, err := utils.ParseBookAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(req.Token))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
	}
	if !claims.HasPermission(model.PermProgress) {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	completion := req.Progress
	if completion < 0 {
		completion = 0
	}
	if completion > 100 {
		completion = 100
	}
	timeSpent := req.TimeSpent
	if timeSpent < 0 {
		timeSpent = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Progress.Upsert(ctx, claims.UserID, claims.BookID, req.CurrentChapter, req.CurrentPage, completion, timeSpent)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "save progress failed"})
	}

	// Bookmark merge is best-effort: a failed insert is logged and the
	// progress response still goes out, so the reader keeps working.
	if len(req.Bookmarks) > 0 && claims.HasPermission(model.PermBookmark) {
		for _, in := range req.Bookmarks {
			bm := model.Bookmark{
				UserID:  claims.UserID,
				BookID:  claims.BookID,
				Page:    in.Page,
				Chapter: in.Chapter,
				Note:    in.Note,
				Type:    in.Type,
			}
			if bm.Type == "" {
				bm.Type = model.BookmarkPageSave
			}
			if len(in.Metadata) > 0 {
				bm.Metadata = string(in.Metadata)
			}
			if err := h.Bookmarks.AddIfAbsent(ctx, bm); err != nil {
				log.Printf("progress: merge bookmark failed for user=%d book=%s page=%d: %v", claims.UserID, claims.BookID, in.Page, err)
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "progress": p})
}

type deleteBookmarkReq struct {
	Token      string `json:"token"`
	BookmarkID uint64 `json:"bookmarkId"`
}

// DeleteBookmark removes a bookmark through the renderer's token-based
// channel.  Ownership is enforced by the repository: the delete only
// matches rows belonging to the user inside the token.
func (h *ProgressHandler) DeleteBookmark(c echo.Context) error {
	var req deleteBookmarkReq
	if err := c.Bind(&req); err != nil || req.BookmarkID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "bookmarkId required"})
	}
	claims, err := utils.ParseBookAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(req.Token))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
	}
	if !claims.HasPermission(model.PermBookmark) {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Bookmarks.Delete(ctx, claims.UserID, req.BookmarkID); err != nil {
		// Missing row and foreign row collapse into the same 404 so the
		// endpoint cannot probe other users' bookmark ids.
		if err == repository.ErrNotFound || err == repository.ErrForbidden {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "bookmark not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "delete bookmark failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// GetProgress returns the progress snapshot plus bookmarks for a
// (user, book) pair.  Session-authenticated; a user can only read their
// own progress unless they are an admin.
func (h *ProgressHandler) GetProgress(c echo.Context) error {
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
	}
	targetID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || targetID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid userId"})
	}
	bookID := strings.TrimSpace(c.Param("bookId"))
	if bookID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid bookId"})
	}
	if targetID != uid && currentRole(c) != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Progress.Get(ctx, targetID, bookID)
	if err != nil && err != repository.ErrNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "load progress failed"})
	}

	bookmarks, err := h.Bookmarks.ListForUserBook(ctx, targetID, bookID)
	if err != nil {
		log.Printf("progress: list bookmarks failed for user=%d book=%s: %v", targetID, bookID, err)
		bookmarks = []model.Bookmark{}
	}
	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"progress":       p.Completion,
		"currentPage":    p.CurrentSpread,
		"currentChapter": p.CurrentChapter,
		"timeSpent":      p.TotalTimeSpent,
		"lastReadAt":     p.LastReadAt,
		"bookmarks":      bookmarks,
	})
}
