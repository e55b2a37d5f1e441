package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/queue"
)

func newAnalyticsFixture() (*AnalyticsHandler, *fakeAnalyticsStore, *fakeSessionStore, *[]queue.TelemetryEvent) {
	store := newFakeAnalyticsStore()
	sessions := newFakeSessionStore()
	h := NewAnalyticsHandler(testConfig(), store, sessions)
	var published []queue.TelemetryEvent
	h.Publish = func(ctx context.Context, ev queue.TelemetryEvent) error {
		published = append(published, ev)
		return nil
	}
	return h, store, sessions, &published
}

func postAnalytics(t *testing.T, fn echo.HandlerFunc, path string, body any) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, path, body)
	require.NoError(t, fn(c))
	return rec.Code, decodeBody(rec)
}

func trackBody(token, sessionID string, page int, timeMs int64, completed bool, interactionTypes ...string) map[string]any {
	interactions := make([]map[string]string, 0, len(interactionTypes))
	for _, it := range interactionTypes {
		interactions = append(interactions, map[string]string{"type": it})
	}
	return map[string]any{
		"token":        token,
		"session_id":   sessionID,
		"page_data":    map[string]any{"page": page, "completed": completed},
		"timing_data":  map[string]any{"time_on_page_ms": timeMs},
		"interactions": interactions,
	}
}

func TestTrackRejectsBadToken(t *testing.T) {
	h, _, _, _ := newAnalyticsFixture()
	code, _ := postAnalytics(t, h.Track, "/v1/book-access/analytics/track", trackBody("garbage", "s1", 1, 1000, false))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTrackFoldsProfile(t *testing.T) {
	h, store, _, published := newAnalyticsFixture()
	tok := mintProgressToken(t, 5, "brave-bear")

	code, body := postAnalytics(t, h.Track, "/v1/book-access/analytics/track",
		trackBody(tok, "s1", 3, 60_000, true, "tap", "tap", "audio"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["analytics_processed"])
	assert.Equal(t, "s1", body["session_id"])

	require.Len(t, store.engagements, 1)
	eng := store.engagements[0]
	assert.Equal(t, uint64(5), eng.UserID)
	assert.Equal(t, "brave-bear", eng.BookID)
	assert.Equal(t, 3, eng.Page)
	assert.Equal(t, 3, eng.InteractionsCount)
	assert.True(t, eng.Completed)

	profile := store.profiles[5]
	assert.Greater(t, profile.EngagementScore, 0.0)
	assert.Greater(t, profile.CompletionRate, 0.0)
	assert.Contains(t, profile.InteractionPatterns, "tap")

	require.Len(t, *published, 1)
	assert.Equal(t, queue.KindPageEngagement, (*published)[0].Kind)
}

func TestTrackKeyedByUserAcrossTokens(t *testing.T) {
	h, store, _, _ := newAnalyticsFixture()
	tokA := mintProgressToken(t, 5, "brave-bear")
	tokB := mintProgressToken(t, 5, "brave-bear")

	postAnalytics(t, h.Track, "/v1/book-access/analytics/track", trackBody(tokA, "s1", 1, 30_000, false, "tap"))
	postAnalytics(t, h.Track, "/v1/book-access/analytics/track", trackBody(tokB, "s2", 2, 30_000, false, "tap"))

	// Both reports land on the same profile even though the tokens and
	// session ids differ.
	assert.Len(t, store.profiles, 1)
	assert.Len(t, store.engagements, 2)
}

func TestTrackSurvivesStoreFailure(t *testing.T) {
	h, store, _, _ := newAnalyticsFixture()
	store.failInsert = true
	tok := mintProgressToken(t, 5, "brave-bear")

	code, body := postAnalytics(t, h.Track, "/v1/book-access/analytics/track", trackBody(tok, "s1", 1, 1000, false))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["analytics_processed"])
}

func openSession(t *testing.T, sessions *fakeSessionStore, id string, userID uint64, bookID string) {
	t.Helper()
	require.NoError(t, sessions.Create(context.Background(), model.ReadingSession{ID: id, UserID: userID, BookID: bookID}))
}

func TestEndSessionAppliesTotalsOnce(t *testing.T) {
	h, store, sessions, published := newAnalyticsFixture()
	tok := mintProgressToken(t, 5, "brave-bear")
	openSession(t, sessions, "s1", 5, "brave-bear")

	req := map[string]any{
		"token": tok, "session_id": "s1",
		"totalDuration": 300, "pagesVisited": []int{1, 2, 3}, "finalInteractions": 12,
	}
	code, body := postAnalytics(t, h.EndSession, "/v1/book-access/analytics/end-session", req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	_, dup := body["already_closed"]
	assert.False(t, dup)

	profile := store.profiles[5]
	assert.Equal(t, int64(1), profile.TotalSessions)
	assert.Equal(t, int64(300), profile.TotalReadingTime)

	sess, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, sess.SessionEnd)
	assert.Equal(t, "[1,2,3]", sess.PagesVisited)
	assert.Equal(t, 12, sess.InteractionsCount)

	require.Len(t, *published, 1)
	assert.Equal(t, queue.KindSessionClosed, (*published)[0].Kind)

	// Renderers fire end-session from both unmount and pagehide; the
	// duplicate must not grow the lifetime counters again.
	code, body = postAnalytics(t, h.EndSession, "/v1/book-access/analytics/end-session", req)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["already_closed"])

	profile = store.profiles[5]
	assert.Equal(t, int64(1), profile.TotalSessions)
	assert.Equal(t, int64(300), profile.TotalReadingTime)
	assert.Len(t, *published, 1)
}

func TestEndSessionUnknownSession(t *testing.T) {
	h, _, _, _ := newAnalyticsFixture()
	tok := mintProgressToken(t, 5, "brave-bear")
	code, _ := postAnalytics(t, h.EndSession, "/v1/book-access/analytics/end-session",
		map[string]any{"token": tok, "session_id": "nope"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEndSessionForbiddenForOtherUser(t *testing.T) {
	h, _, sessions, _ := newAnalyticsFixture()
	openSession(t, sessions, "s1", 5, "brave-bear")
	tok := mintProgressToken(t, 6, "brave-bear")

	code, _ := postAnalytics(t, h.EndSession, "/v1/book-access/analytics/end-session",
		map[string]any{"token": tok, "session_id": "s1"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestEndSessionRequiresSessionID(t *testing.T) {
	h, _, _, _ := newAnalyticsFixture()
	tok := mintProgressToken(t, 5, "brave-bear")
	code, _ := postAnalytics(t, h.EndSession, "/v1/book-access/analytics/end-session",
		map[string]any{"token": tok, "session_id": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSummary(t *testing.T) {
	h, store, _, _ := newAnalyticsFixture()
	require.NoError(t, store.ApplySessionClose(context.Background(), 1, 100))
	require.NoError(t, store.ApplySessionClose(context.Background(), 2, 200))

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodGet, "/v1/book-access/analytics/summary", nil)
	require.NoError(t, h.Summary(c))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(rec)
	assert.Equal(t, float64(2), body["totalUsers"])
	assert.Equal(t, float64(2), body["totalSessions"])
	assert.Equal(t, float64(300), body["totalReadingTime"])
}
