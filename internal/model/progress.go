package model

import "time"

// ReadingProgress tracks where a user is in a specific book.  One row per
// (user_id, book_id).  Position fields (chapter, spread, completion) hold
// the most recently reported values; TotalTimeSpent accumulates across
// every update and every token the user has ever been issued for the book.
type ReadingProgress struct {
	UserID         uint64    `json:"user_id" db:"user_id"`
	BookID         string    `json:"book_id" db:"book_id"`
	CurrentChapter int       `json:"current_chapter" db:"current_chapter"`
	CurrentSpread  int       `json:"current_spread" db:"current_spread"`
	Completion     float64   `json:"completion_percentage" db:"completion_percentage"` // 0-100
	TotalTimeSpent int64     `json:"total_time_spent" db:"total_time_spent"`           // seconds
	LastReadAt     time.Time `json:"last_read_at" db:"last_read_at"`
}

// Bookmark kinds.
const (
	BookmarkPageSave       = "page_save"
	BookmarkNote           = "note"
	BookmarkHighlight      = "highlight"
	BookmarkInteractiveCue = "interactive_cue"
)

// Bookmark is a user-created marker inside a book.  Bookmarks have a
// lifecycle independent from reading progress: they are created, updated
// and deleted through token-authenticated calls from the renderer.
// Metadata holds renderer-specific JSON (cue ids, highlight colors).
type Bookmark struct {
	ID        uint64    `json:"id" db:"id"`
	UserID    uint64    `json:"user_id" db:"user_id"`
	BookID    string    `json:"book_id" db:"book_id"`
	Page      int       `json:"page" db:"page"`
	Chapter   *int      `json:"chapter,omitempty" db:"chapter"`
	Note      *string   `json:"note,omitempty" db:"note"`
	Type      string    `json:"type" db:"type"`
	Metadata  string    `json:"metadata,omitempty" db:"metadata"` // raw JSON
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
