package model

import "time"

// ReadingSession records one continuous stretch of reading.  A row is
// created when validate-enhanced succeeds and the reading UI mounts, and
// closed exactly once when the renderer reports the session end.  Closed
// sessions are immutable.
//
// Fields:
//
//	ID                – opaque session identifier handed to the renderer.
//	UserID            – reading user.
//	BookID            – book slug being read.
//	SessionStart      – when the session was opened.
//	SessionEnd        – when it was closed (null while active).
//	TotalDuration     – reported duration in seconds.
//	PagesVisited      – JSON array of distinct page numbers.
//	InteractionsCount – total interactions reported for the session.
//	DeviceType        – coarse device class, if the renderer reported one.
type ReadingSession struct {
	ID                string     // reading_sessions.id
	UserID            uint64     // reading_sessions.user_id
	BookID            string     // reading_sessions.book_id
	SessionStart      time.Time  // reading_sessions.session_start
	SessionEnd        *time.Time // reading_sessions.session_end (nullable)
	TotalDuration     int64      // reading_sessions.total_duration
	PagesVisited      string     // reading_sessions.pages_visited (JSON)
	InteractionsCount int        // reading_sessions.interactions_count
	DeviceType        *string    // reading_sessions.device_type (nullable)
}

// PageEngagement is one telemetry sample for a page view inside a session.
type PageEngagement struct {
	ID                uint64    // page_engagements.id
	UserID            uint64    // page_engagements.user_id
	BookID            string    // page_engagements.book_id
	SessionID         string    // page_engagements.session_id
	Page              int       // page_engagements.page
	TimeOnPageMs      int64     // page_engagements.time_on_page_ms
	InteractionsCount int       // page_engagements.interactions_count
	Completed         bool      // page_engagements.completed
	CreatedAt         time.Time // page_engagements.created_at
}

// UserAnalyticsProfile aggregates a user's reading activity across their
// whole lifetime.  The user id is the aggregation key: sessions opened
// under different book-access tokens, devices or logins all fold into the
// same row, and the counters never reset.
type UserAnalyticsProfile struct {
	UserID              uint64    `json:"user_id" db:"user_id"`
	TotalSessions       int64     `json:"total_sessions" db:"total_sessions"`
	TotalReadingTime    int64     `json:"total_reading_time" db:"total_reading_time"` // seconds
	AvgSessionDuration  float64   `json:"average_session_duration" db:"average_session_duration"`
	CompletionRate      float64   `json:"completion_rate" db:"completion_rate"`
	EngagementScore     float64   `json:"engagement_score" db:"engagement_score"` // 0-100
	InteractionPatterns string    `json:"interaction_patterns" db:"interaction_patterns"` // JSON
	LastCalculated      time.Time `json:"last_calculated" db:"last_calculated"`
}
