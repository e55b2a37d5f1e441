package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

// ProgressRepo maintains the single reading_progress row per
// (user_id, book_id).
type ProgressRepo struct{ DB *sql.DB }

func NewProgressRepo(db *sql.DB) *ProgressRepo { return &ProgressRepo{DB: db} }

// Upsert applies one progress report.  Position fields overwrite:
// last-write-wins by arrival order with no version check, so two tabs
// racing is accepted.  Time spent is additive and accumulates across
// updates, tokens and devices.  Returns the row after the update.
func (r *ProgressRepo) Upsert(ctx context.Context, userID uint64, bookID string, chapter, spread int, completion float64, timeSpent int64) (model.ReadingProgress, error) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO reading_progress
		        (user_id, book_id, current_chapter, current_spread, completion_percentage, total_time_spent, last_read_at)
		 VALUES (?,?,?,?,?,?,UTC_TIMESTAMP())
		 ON DUPLICATE KEY UPDATE
		        current_chapter=VALUES(current_chapter),
		        current_spread=VALUES(current_spread),
		        completion_percentage=VALUES(completion_percentage),
		        total_time_spent=total_time_spent+VALUES(total_time_spent),
		        last_read_at=UTC_TIMESTAMP()`,
		userID, bookID, chapter, spread, completion, timeSpent)
	if err != nil {
		return model.ReadingProgress{}, err
	}
	return r.Get(ctx, userID, bookID)
}

// Get fetches the progress row, returning ErrNotFound when the user has
// never reported progress for the book.
func (r *ProgressRepo) Get(ctx context.Context, userID uint64, bookID string) (model.ReadingProgress, error) {
	var p model.ReadingProgress
	err := r.DB.QueryRowContext(ctx,
		`SELECT user_id, book_id, current_chapter, current_spread, completion_percentage, total_time_spent, last_read_at
		   FROM reading_progress WHERE user_id=? AND book_id=? LIMIT 1`,
		userID, bookID).Scan(&p.UserID, &p.BookID, &p.CurrentChapter, &p.CurrentSpread, &p.Completion, &p.TotalTimeSpent, &p.LastReadAt)
	if err == sql.ErrNoRows {
		return model.ReadingProgress{}, ErrNotFound
	}
	return p, err
}
