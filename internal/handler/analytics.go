package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/analytics"
	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/queue"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	queue_publisher "github.com/bravethingsbooks/platform-api/internal/service"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

// AnalyticsStore persists engagements and the per-user profile.
type AnalyticsStore interface {
	InsertEngagement(ctx context.Context, e model.PageEngagement) error
	GetProfile(ctx context.Context, userID uint64) (model.UserAnalyticsProfile, error)
	ApplySessionClose(ctx context.Context, userID uint64, durationSecs int64) error
	SetEngagement(ctx context.Context, userID uint64, score, completionRate float64, patterns string) error
	Summary(ctx context.Context) (repository.AnalyticsSummary, error)
}

// SessionCloser reads and transitions reading sessions.
type SessionCloser interface {
	Get(ctx context.Context, id string) (model.ReadingSession, error)
	Close(ctx context.Context, id string, totalDuration int64, pagesVisited string, interactions int) (bool, error)
}

// AnalyticsHandler accepts the renderer's telemetry.  Nothing here may
// fail the caller's page load: persistence and publish errors are logged
// and swallowed.
type AnalyticsHandler struct {
	Cfg       config.Config
	Analytics AnalyticsStore
	Sessions  SessionCloser
	// Publish is swappable in tests; defaults to the RabbitMQ publisher.
	Publish func(ctx context.Context, ev queue.TelemetryEvent) error
}

func NewAnalyticsHandler(cfg config.Config, a AnalyticsStore, s SessionCloser) *AnalyticsHandler {
	return &AnalyticsHandler{Cfg: cfg, Analytics: a, Sessions: s, Publish: queue_publisher.PublishTelemetry}
}

// ----- DTOs -----

type interactionIn struct {
	Type string `json:"type"`
}

type trackReq struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	PageData  struct {
		Page      int  `json:"page"`
		Completed bool `json:"completed"`
	} `json:"page_data"`
	TimingData struct {
		TimeOnPageMs int64 `json:"time_on_page_ms"`
	} `json:"timing_data"`
	Interactions []interactionIn `json:"interactions"`
}

type endSessionReq struct {
	Token             string `json:"token"`
	SessionID         string `json:"session_id"`
	TotalDuration     int64  `json:"totalDuration"` // seconds
	PagesVisited      []int  `json:"pagesVisited"`
	FinalInteractions int    `json:"finalInteractions"`
}

// Track appends a page engagement and folds it into the user's analytics
// profile.  The aggregation key is the user id from the token, never the
// token or session id, so renewed tokens keep feeding the same profile.
func (h *AnalyticsHandler) Track(c echo.Context) error {
	var req trackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	claims, err := utils.ParseBookAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(req.Token))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	processed := true

	engagement := model.PageEngagement{
		UserID:            claims.UserID,
		BookID:            claims.BookID,
		SessionID:         req.SessionID,
		Page:              req.PageData.Page,
		TimeOnPageMs:      req.TimingData.TimeOnPageMs,
		InteractionsCount: len(req.Interactions),
		Completed:         req.PageData.Completed,
	}
	if err := h.Analytics.InsertEngagement(ctx, engagement); err != nil {
		log.Printf("analytics: insert engagement failed for user=%d session=%s: %v", claims.UserID, req.SessionID, err)
		processed = false
	}

	// Fold the sample into the profile.  A missing profile starts from
	// zero; a read error skips the fold for this sample rather than
	// failing the request.
	profile, err := h.Analytics.GetProfile(ctx, claims.UserID)
	if err != nil && err != repository.ErrNotFound {
		log.Printf("analytics: load profile failed for user=%d: %v", claims.UserID, err)
		processed = false
	} else {
		sample := analytics.Sample{
			TimeOnPageMs: req.TimingData.TimeOnPageMs,
			Interactions: len(req.Interactions),
			Completed:    req.PageData.Completed,
		}
		score := analytics.FoldScore(profile.EngagementScore, sample)
		completion := analytics.FoldCompletion(profile.CompletionRate, req.PageData.Completed)
		types := make([]string, 0, len(req.Interactions))
		for _, in := range req.Interactions {
			types = append(types, in.Type)
		}
		patterns := analytics.FoldPatterns(profile.InteractionPatterns, types)
		if err := h.Analytics.SetEngagement(ctx, claims.UserID, score, completion, patterns); err != nil {
			log.Printf("analytics: update engagement failed for user=%d: %v", claims.UserID, err)
			processed = false
		}
	}

	// Publish failures are already logged by the publisher; the event is
	// simply lost.
	_ = h.Publish(ctx, queue.TelemetryEvent{
		Kind:         queue.KindPageEngagement,
		UserID:       claims.UserID,
		BookID:       claims.BookID,
		SessionID:    req.SessionID,
		Page:         req.PageData.Page,
		TimeOnPageMs: req.TimingData.TimeOnPageMs,
		Interactions: len(req.Interactions),
		Completed:    req.PageData.Completed,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success":             true,
		"analytics_processed": processed,
		"session_id":          req.SessionID,
	})
}

// EndSession closes a reading session and rolls its totals into the
// profile counters, exactly once.  A duplicate close is a no-op success,
// not an error: renderers fire this from both unmount and pagehide.
func (h *AnalyticsHandler) EndSession(c echo.Context) error {
	var req endSessionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "session_id required"})
	}
	claims, err := utils.ParseBookAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(req.Token))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "invalid token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	session, err := h.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"success": false, "error": "unknown session"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "load session failed"})
	}
	if session.UserID != claims.UserID {
		return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "forbidden"})
	}

	duration := req.TotalDuration
	if duration < 0 {
		duration = 0
	}
	pagesJSON := "[]"
	if b, err := json.Marshal(req.PagesVisited); err == nil && req.PagesVisited != nil {
		pagesJSON = string(b)
	}

	closedNow, err := h.Sessions.Close(ctx, req.SessionID, duration, pagesJSON, req.FinalInteractions)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "close session failed"})
	}
	if !closedNow {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "already_closed": true})
	}

	// This is the single point where lifetime counters grow; the guarded
	// close above guarantees it runs once per session.
	if err := h.Analytics.ApplySessionClose(ctx, session.UserID, duration); err != nil {
		log.Printf("analytics: apply session close failed for user=%d session=%s: %v", session.UserID, req.SessionID, err)
	}

	_ = h.Publish(ctx, queue.TelemetryEvent{
		Kind:          queue.KindSessionClosed,
		UserID:        session.UserID,
		BookID:        session.BookID,
		SessionID:     req.SessionID,
		Interactions:  req.FinalInteractions,
		TotalDuration: duration,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Summary returns the platform-wide aggregates for the admin dashboard.
// Mounted behind RequireRole(admin) and the Redis response cache.
func (h *AnalyticsHandler) Summary(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.Analytics.Summary(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "summary failed"})
	}
	if s.TopUsers == nil {
		s.TopUsers = []repository.TopUser{}
	}
	return c.JSON(http.StatusOK, s)
}
