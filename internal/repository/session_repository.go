package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// SessionRepo manages reading_sessions rows.  A session opens when
// validate-enhanced succeeds and closes at most once; the guarded UPDATE
// in Close is what makes duplicate close calls a no-op.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts an open session row.
func (r *SessionRepo) Create(ctx context.Context, s model.ReadingSession) error {
	var deviceType interface{}
	if s.DeviceType != nil {
		deviceType = *s.DeviceType
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO reading_sessions (id, user_id, book_id, session_start, pages_visited, device_type)
		 VALUES (?,?,?,UTC_TIMESTAMP(),'[]',?)`,
		s.ID, s.UserID, s.BookID, deviceType)
	return err
}

// Get fetches a session by id.
func (r *SessionRepo) Get(ctx context.Context, id string) (model.ReadingSession, error) {
	var (
		s          model.ReadingSession
		sessionEnd sql.NullTime
		deviceType sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, book_id, session_start, session_end, total_duration, pages_visited, interactions_count, device_type
		   FROM reading_sessions WHERE id=? LIMIT 1`,
		id).Scan(&s.ID, &s.UserID, &s.BookID, &s.SessionStart, &sessionEnd, &s.TotalDuration, &s.PagesVisited, &s.InteractionsCount, &deviceType)
	if err == sql.ErrNoRows {
		return model.ReadingSession{}, ErrNotFound
	}
	if err != nil {
		return model.ReadingSession{}, err
	}
	if sessionEnd.Valid {
		s.SessionEnd = &sessionEnd.Time
	}
	if deviceType.Valid {
		s.DeviceType = &deviceType.String
	}
	return s, nil
}

// Close sets session_end on an open session.  Returns true only when this
// call performed the transition; an already-closed session reports false
// with no error, so the analytics counters increment exactly once.
func (r *SessionRepo) Close(ctx context.Context, id string, totalDuration int64, pagesVisited string, interactions int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE reading_sessions
		    SET session_end=UTC_TIMESTAMP(), total_duration=?, pages_visited=?, interactions_count=?
		  WHERE id=? AND session_end IS NULL`,
		totalDuration, pagesVisited, interactions, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
