package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bravethingsbooks/platform-api/internal/config"
	"github.com/bravethingsbooks/platform-api/internal/model"
	"github.com/bravethingsbooks/platform-api/internal/repository"
	"github.com/bravethingsbooks/platform-api/internal/utils"
)

// In-memory stand-ins for the repository layer.  They mirror the SQL
// semantics the handlers rely on: sentinel errors, add-if-absent
// deduplication, additive time accumulation and the guarded session close.

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 30,
		BcryptCost:     4,
		ReaderBaseURL:  "https://books.example.com/read",
		ReturnURL:      "https://bravethingsbooks.com/library",
		BookExpiryDays: 30,
	}
}

// ----- users -----

type fakeUserStore struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, byID: map[uint64]model.User{}}
}

func (s *fakeUserStore) Create(ctx context.Context, name, email, password string, cost int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := s.nextID
	s.nextID++
	now := time.Now().UTC()
	s.byID[id] = model.User{
		ID: id, Email: email, PasswordHash: hash, Name: name,
		Role: model.RoleUser, Subscription: model.SubscriptionFree,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	return id, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

// ----- refresh tokens -----

type fakeRefreshEntry struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

type fakeRefreshStore struct {
	mu     sync.Mutex
	byHash map[string]*fakeRefreshEntry
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{byHash: map[string]*fakeRefreshEntry{}}
}

func (s *fakeRefreshStore) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[tokenHash] = &fakeRefreshEntry{userID: userID, exp: exp}
	return nil
}

func (s *fakeRefreshStore) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byHash[tokenHash]
	if !ok || e.revoked || time.Now().UTC().After(e.exp) {
		return 0, sql.ErrNoRows
	}
	return e.userID, nil
}

func (s *fakeRefreshStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byHash[tokenHash]; ok {
		e.revoked = true
	}
	return nil
}

func (s *fakeRefreshStore) RevokeAllForUser(ctx context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byHash {
		if e.userID == userID {
			e.revoked = true
		}
	}
	return nil
}

// ----- purchases -----

type fakePurchaseStore struct {
	purchases []model.Purchase
}

func (s *fakePurchaseStore) ActiveForUserBook(ctx context.Context, userID uint64, bookID string) (model.Purchase, error) {
	for _, p := range s.purchases {
		if p.UserID == userID && p.BookID == bookID {
			if p.AccessExpires == nil || p.AccessExpires.After(time.Now().UTC()) {
				return p, nil
			}
		}
	}
	return model.Purchase{}, repository.ErrForbidden
}

func (s *fakePurchaseStore) ListForUser(ctx context.Context, userID uint64) ([]model.Purchase, error) {
	var out []model.Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ----- book access tokens -----

type fakeBookTokenStore struct {
	mu   sync.Mutex
	rows []model.BookAccessToken
}

func (s *fakeBookTokenStore) FindActive(ctx context.Context, userID uint64, bookID string) (model.BookAccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		r := s.rows[i]
		if r.UserID == userID && r.BookID == bookID {
			if r.ExpiresAt == nil || r.ExpiresAt.After(time.Now().UTC()) {
				return r, nil
			}
		}
	}
	return model.BookAccessToken{}, repository.ErrNotFound
}

func (s *fakeBookTokenStore) Store(ctx context.Context, t model.BookAccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uint64(len(s.rows) + 1)
	t.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, t)
	return nil
}

func (s *fakeBookTokenStore) PurgeExpired(ctx context.Context) error { return nil }

// ----- settings -----

type fakeSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{values: map[string]string{}}
}

func (s *fakeSettingsStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (s *fakeSettingsStore) GetInt(ctx context.Context, key string, def int) int {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func (s *fakeSettingsStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// ----- bookmarks -----

type fakeBookmarkStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   []model.Bookmark
}

func (s *fakeBookmarkStore) AddIfAbsent(ctx context.Context, b model.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.UserID == b.UserID && r.BookID == b.BookID && r.Page == b.Page && intPtrEqual(r.Chapter, b.Chapter) {
			return nil
		}
	}
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, b)
	return nil
}

func (s *fakeBookmarkStore) ListForUserBook(ctx context.Context, userID uint64, bookID string) ([]model.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Bookmark
	for _, r := range s.rows {
		if r.UserID == userID && r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeBookmarkStore) Delete(ctx context.Context, userID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.ID == id && r.UserID == userID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrForbidden
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ----- progress -----

type fakeProgressStore struct {
	mu   sync.Mutex
	rows map[string]model.ReadingProgress
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{rows: map[string]model.ReadingProgress{}}
}

func progressKey(userID uint64, bookID string) string {
	return fmt.Sprintf("%d/%s", userID, bookID)
}

func (s *fakeProgressStore) Upsert(ctx context.Context, userID uint64, bookID string, chapter, spread int, completion float64, timeSpent int64) (model.ReadingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey(userID, bookID)
	p, ok := s.rows[key]
	if !ok {
		p = model.ReadingProgress{UserID: userID, BookID: bookID}
	}
	p.CurrentChapter = chapter
	p.CurrentSpread = spread
	p.Completion = completion
	p.TotalTimeSpent += timeSpent
	p.LastReadAt = time.Now().UTC()
	s.rows[key] = p
	return p, nil
}

func (s *fakeProgressStore) Get(ctx context.Context, userID uint64, bookID string) (model.ReadingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[progressKey(userID, bookID)]
	if !ok {
		return model.ReadingProgress{}, repository.ErrNotFound
	}
	return p, nil
}

// ----- reading sessions -----

type fakeSessionStore struct {
	mu   sync.Mutex
	rows map[string]model.ReadingSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: map[string]model.ReadingSession{}}
}

func (s *fakeSessionStore) Create(ctx context.Context, sess model.ReadingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.SessionStart = time.Now().UTC()
	sess.PagesVisited = "[]"
	s.rows[sess.ID] = sess
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, id string) (model.ReadingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.rows[id]
	if !ok {
		return model.ReadingSession{}, repository.ErrNotFound
	}
	return sess, nil
}

func (s *fakeSessionStore) Close(ctx context.Context, id string, totalDuration int64, pagesVisited string, interactions int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.rows[id]
	if !ok || sess.SessionEnd != nil {
		return false, nil
	}
	now := time.Now().UTC()
	sess.SessionEnd = &now
	sess.TotalDuration = totalDuration
	sess.PagesVisited = pagesVisited
	sess.InteractionsCount = interactions
	s.rows[id] = sess
	return true, nil
}

// ----- analytics -----

type fakeAnalyticsStore struct {
	mu          sync.Mutex
	engagements []model.PageEngagement
	profiles    map[uint64]model.UserAnalyticsProfile
	failInsert  bool
}

func newFakeAnalyticsStore() *fakeAnalyticsStore {
	return &fakeAnalyticsStore{profiles: map[uint64]model.UserAnalyticsProfile{}}
}

func (s *fakeAnalyticsStore) InsertEngagement(ctx context.Context, e model.PageEngagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return fmt.Errorf("storage down")
	}
	s.engagements = append(s.engagements, e)
	return nil
}

func (s *fakeAnalyticsStore) GetProfile(ctx context.Context, userID uint64) (model.UserAnalyticsProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserAnalyticsProfile{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *fakeAnalyticsStore) ApplySessionClose(ctx context.Context, userID uint64, durationSecs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[userID]
	p.UserID = userID
	p.TotalSessions++
	p.TotalReadingTime += durationSecs
	p.AvgSessionDuration = float64(p.TotalReadingTime) / float64(p.TotalSessions)
	p.LastCalculated = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

func (s *fakeAnalyticsStore) SetEngagement(ctx context.Context, userID uint64, score, completionRate float64, patterns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[userID]
	p.UserID = userID
	p.EngagementScore = score
	p.CompletionRate = completionRate
	p.InteractionPatterns = patterns
	p.LastCalculated = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

func (s *fakeAnalyticsStore) Summary(ctx context.Context) (repository.AnalyticsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := repository.AnalyticsSummary{TotalUsers: int64(len(s.profiles))}
	for _, p := range s.profiles {
		out.TotalSessions += p.TotalSessions
		out.TotalReadingTime += p.TotalReadingTime
	}
	return out, nil
}

// ----- request helpers -----

func newJSONContext(e *echo.Echo, method, target string, body any) (echo.Context, *httptest.ResponseRecorder) {
	var reader *strings.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return out
}
