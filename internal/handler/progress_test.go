package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

func newProgressFixture() (*ProgressHandler, *fakeProgressStore, *fakeBookmarkStore) {
	progress := newFakeProgressStore()
	bookmarks := &fakeBookmarkStore{}
	return NewProgressHandler(testConfig(), progress, bookmarks), progress, bookmarks
}

func mintProgressToken(t *testing.T, userID uint64, bookID string, perms ...string) string {
	t.Helper()
	if len(perms) == 0 {
		perms = []string{model.PermRead, model.PermBookmark, model.PermProgress}
	}
	raw, err := utils.NewBookAccessToken(testConfig().JWTSecret, userID, bookID, 1, perms, nil)
	require.NoError(t, err)
	return raw
}

func postProgress(t *testing.T, h *ProgressHandler, body any) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/book-access/update-progress", body)
	require.NoError(t, h.UpdateProgress(c))
	return rec.Code, decodeBody(rec)
}

func TestUpdateProgressRejectsBadToken(t *testing.T) {
	h, _, _ := newProgressFixture()
	code, body := postProgress(t, h, map[string]any{"token": "garbage", "progress": 10})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, body["success"])
}

func TestUpdateProgressRequiresProgressPermission(t *testing.T) {
	h, _, _ := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear", model.PermRead)
	code, _ := postProgress(t, h, map[string]any{"token": tok, "progress": 10})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestUpdateProgressPositionsOverwriteTimeAccumulates(t *testing.T) {
	h, progress, _ := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear")

	code, _ := postProgress(t, h, map[string]any{
		"token": tok, "progress": 25.0, "currentPage": 4, "currentChapter": 2, "timeSpent": 60,
	})
	require.Equal(t, http.StatusOK, code)

	code, body := postProgress(t, h, map[string]any{
		"token": tok, "progress": 40.0, "currentPage": 9, "currentChapter": 3, "timeSpent": 90,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	p := progress.rows[progressKey(1, "brave-bear")]
	assert.Equal(t, 3, p.CurrentChapter)
	assert.Equal(t, 9, p.CurrentSpread)
	assert.Equal(t, 40.0, p.Completion)
	// timeSpent adds across reports; positions take the latest value.
	assert.Equal(t, int64(150), p.TotalTimeSpent)
}

func TestUpdateProgressSameUserDifferentTokensShareRow(t *testing.T) {
	h, progress, _ := newProgressFixture()
	tokA := mintProgressToken(t, 1, "brave-bear")
	tokB := mintProgressToken(t, 1, "brave-bear")

	postProgress(t, h, map[string]any{"token": tokA, "timeSpent": 30})
	postProgress(t, h, map[string]any{"token": tokB, "timeSpent": 45})

	require.Len(t, progress.rows, 1)
	assert.Equal(t, int64(75), progress.rows[progressKey(1, "brave-bear")].TotalTimeSpent)
}

func TestUpdateProgressClampsInputs(t *testing.T) {
	h, progress, _ := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear")

	code, _ := postProgress(t, h, map[string]any{"token": tok, "progress": 180.0, "timeSpent": -30})
	require.Equal(t, http.StatusOK, code)

	p := progress.rows[progressKey(1, "brave-bear")]
	assert.Equal(t, 100.0, p.Completion)
	assert.Equal(t, int64(0), p.TotalTimeSpent)
}

func TestUpdateProgressMergesBookmarks(t *testing.T) {
	h, _, bookmarks := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear")

	report := map[string]any{
		"token": tok, "progress": 10.0,
		"bookmarks": []map[string]any{
			{"page": 4, "chapter": 2, "note": "dragon cave"},
			{"page": 7},
		},
	}
	code, _ := postProgress(t, h, report)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, bookmarks.rows, 2)
	assert.Equal(t, model.BookmarkPageSave, bookmarks.rows[0].Type)

	// Replaying the same report must not duplicate bookmarks.
	code, _ = postProgress(t, h, report)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, bookmarks.rows, 2)
}

func TestUpdateProgressSkipsBookmarksWithoutPermission(t *testing.T) {
	h, _, bookmarks := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear", model.PermRead, model.PermProgress)

	code, _ := postProgress(t, h, map[string]any{
		"token": tok, "progress": 10.0,
		"bookmarks": []map[string]any{{"page": 4}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, bookmarks.rows)
}

func TestDeleteBookmark(t *testing.T) {
	h, _, bookmarks := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear")
	postProgress(t, h, map[string]any{
		"token": tok, "progress": 10.0,
		"bookmarks": []map[string]any{{"page": 4}},
	})
	require.Len(t, bookmarks.rows, 1)
	id := bookmarks.rows[0].ID

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/book-access/delete-bookmark",
		map[string]any{"token": tok, "bookmarkId": id})
	require.NoError(t, h.DeleteBookmark(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, bookmarks.rows)

	// Deleting again, or deleting someone else's bookmark, is a 404.
	c, rec = newJSONContext(e, http.MethodPost, "/v1/book-access/delete-bookmark",
		map[string]any{"token": tok, "bookmarkId": id})
	require.NoError(t, h.DeleteBookmark(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBookmarkOwnershipEnforced(t *testing.T) {
	h, _, bookmarks := newProgressFixture()
	owner := mintProgressToken(t, 1, "brave-bear")
	postProgress(t, h, map[string]any{
		"token": owner, "progress": 10.0,
		"bookmarks": []map[string]any{{"page": 4}},
	})
	require.Len(t, bookmarks.rows, 1)

	other := mintProgressToken(t, 2, "brave-bear")
	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/book-access/delete-bookmark",
		map[string]any{"token": other, "bookmarkId": bookmarks.rows[0].ID})
	require.NoError(t, h.DeleteBookmark(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, bookmarks.rows, 1)
}

func getProgress(t *testing.T, h *ProgressHandler, callerID uint64, role string, targetID uint64, bookID string) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	c, rec := newJSONContext(e, http.MethodGet, "/", nil)
	c.SetPath("/v1/book-access/progress/:userId/:bookId")
	c.SetParamNames("userId", "bookId")
	c.SetParamValues(fmt.Sprintf("%d", targetID), bookID)
	c.Set("user_id", callerID)
	c.Set("role", role)
	require.NoError(t, h.GetProgress(c))
	return rec.Code, decodeBody(rec)
}

func TestGetProgressSelf(t *testing.T) {
	h, _, _ := newProgressFixture()
	tok := mintProgressToken(t, 1, "brave-bear")
	postProgress(t, h, map[string]any{"token": tok, "progress": 33.0, "currentPage": 5, "currentChapter": 2, "timeSpent": 120})

	code, body := getProgress(t, h, 1, model.RoleUser, 1, "brave-bear")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 33.0, body["progress"])
	assert.Equal(t, float64(5), body["currentPage"])
	assert.Equal(t, float64(2), body["currentChapter"])
	assert.Equal(t, float64(120), body["timeSpent"])
	assert.NotNil(t, body["bookmarks"])
}

func TestGetProgressUnknownPairIsZero(t *testing.T) {
	h, _, _ := newProgressFixture()
	code, body := getProgress(t, h, 1, model.RoleUser, 1, "never-opened")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.0, body["progress"])
	assert.Equal(t, float64(0), body["timeSpent"])
}

func TestGetProgressForbiddenForOtherUser(t *testing.T) {
	h, _, _ := newProgressFixture()
	code, _ := getProgress(t, h, 1, model.RoleUser, 2, "brave-bear")
	assert.Equal(t, http.StatusForbidden, code)

	// Admins may read any user's progress.
	code, _ = getProgress(t, h, 1, model.RoleAdmin, 2, "brave-bear")
	assert.Equal(t, http.StatusOK, code)
}
