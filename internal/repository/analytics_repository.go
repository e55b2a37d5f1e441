package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// AnalyticsRepo persists page engagements and the per-user analytics
// profile.  Every write keys on the user id, never on a token: two
// different book-access tokens issued to the same user fold into the same
// profile row.
type AnalyticsRepo struct{ DB *sql.DB }

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{DB: db} }

// InsertEngagement appends one page engagement record.
func (r *AnalyticsRepo) InsertEngagement(ctx context.Context, e model.PageEngagement) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO page_engagements (user_id, book_id, session_id, page, time_on_page_ms, interactions_count, completed)
		 VALUES (?,?,?,?,?,?,?)`,
		e.UserID, e.BookID, e.SessionID, e.Page, e.TimeOnPageMs, e.InteractionsCount, e.Completed)
	return err
}

// GetProfile fetches a user's analytics profile, returning ErrNotFound for
// users with no recorded activity yet.
func (r *AnalyticsRepo) GetProfile(ctx context.Context, userID uint64) (model.UserAnalyticsProfile, error) {
	var p model.UserAnalyticsProfile
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, total_sessions, total_reading_time, average_session_duration,
		        completion_rate, engagement_score, interaction_patterns, last_calculated
		   FROM user_analytics_profiles WHERE user_id=? LIMIT 1`,
		userID).Scan(&p.UserID, &p.TotalSessions, &p.TotalReadingTime, &p.AvgSessionDuration,
		&p.CompletionRate, &p.EngagementScore, &p.InteractionPatterns, &p.LastCalculated)
	if err == sql.ErrNoRows {
		return model.UserAnalyticsProfile{}, ErrNotFound
	}
	return p, err
}

// ApplySessionClose increments the lifetime session counters.  The caller
// guarantees it runs at most once per session (SessionRepo.Close reports
// whether the transition happened).  Counters only ever grow; the average
// is re-derived from the post-increment totals in the same statement.
func (r *AnalyticsRepo) ApplySessionClose(ctx context.Context, userID uint64, durationSecs int64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_analytics_profiles
		        (user_id, total_sessions, total_reading_time, average_session_duration, interaction_patterns, last_calculated)
		 VALUES (?,1,?,?,'{}',UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE
		        total_sessions=total_sessions+1,
		        total_reading_time=total_reading_time+VALUES(total_reading_time),
		        average_session_duration=total_reading_time/total_sessions,
		        last_calculated=UTC_TIMESTAMP()`,
		userID, durationSecs, float64(durationSecs))
	return err
}

// SetEngagement stores a freshly folded engagement score and interaction
// patterns for the user, creating the profile row if needed.
func (r *AnalyticsRepo) SetEngagement(ctx context.Context, userID uint64, score, completionRate float64, patterns string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO user_analytics_profiles
		        (user_id, engagement_score, completion_rate, interaction_patterns, last_calculated)
		 VALUES (?,?,?,?,UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE
		        engagement_score=VALUES(engagement_score),
		        completion_rate=VALUES(completion_rate),
		        interaction_patterns=VALUES(interaction_patterns),
		        last_calculated=UTC_TIMESTAMP()`,
		userID, score, completionRate, patterns)
	return err
}

// AnalyticsSummary is the admin dashboard aggregate.
type AnalyticsSummary struct {
	TotalUsers         int64     `json:"totalUsers"`
	NewUsersToday      int64     `json:"newUsersToday"`
	ActiveUsers        int64     `json:"activeUsers"`
	TotalReadingTime   int64     `json:"totalReadingTime"`
	TotalSessions      int64     `json:"totalSessions"`
	AvgEngagementScore float64   `json:"averageEngagementScore"`
	TopUsers           []TopUser `json:"topUsers"`
}

// TopUser is one row of the summary leaderboard.
type TopUser struct {
	UserID           uint64  `json:"userId"`
	Name             string  `json:"name"`
	EngagementScore  float64 `json:"engagementScore"`
	TotalReadingTime int64   `json:"totalReadingTime"`
}

// Summary aggregates platform-wide analytics for the admin dashboard.
// "Active" means a reading session started in the last 7 days.
func (r *AnalyticsRepo) Summary(ctx context.Context) (AnalyticsSummary, error) {
	var s AnalyticsSummary
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(1) FROM users),
		  (SELECT COUNT(1) FROM users WHERE created_at >= UTC_DATE()),
		  (SELECT COUNT(DISTINCT user_id) FROM reading_sessions WHERE session_start >= UTC_TIMESTAMP() - INTERVAL 7 DAY),
		  (SELECT COALESCE(SUM(total_reading_time),0) FROM user_analytics_profiles),
		  (SELECT COALESCE(SUM(total_sessions),0) FROM user_analytics_profiles),
		  (SELECT COALESCE(AVG(engagement_score),0) FROM user_analytics_profiles)`).
		Scan(&s.TotalUsers, &s.NewUsersToday, &s.ActiveUsers, &s.TotalReadingTime, &s.TotalSessions, &s.AvgEngagementScore)
	if err != nil {
		return AnalyticsSummary{}, err
	}

	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.user_id, u.name, p.engagement_score, p.total_reading_time
		   FROM user_analytics_profiles p
		   JOIN users u ON u.id = p.user_id
		  ORDER BY p.engagement_score DESC, p.total_reading_time DESC
		  LIMIT 10`)
	if err != nil {
		return AnalyticsSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t TopUser
		if err := rows.Scan(&t.UserID, &t.Name, &t.EngagementScore, &t.TotalReadingTime); err != nil {
			return AnalyticsSummary{}, err
		}
		s.TopUsers = append(s.TopUsers, t)
	}
	return s, rows.Err()
}
