package repository

import (
	"context"
	"database/sql"

	"github.com/bravethingsbooks/platform-api/internal/model"
)

type BookmarkRepo struct{ DB *sql.DB }

func NewBookmarkRepo(db *sql.DB) *BookmarkRepo { return &BookmarkRepo{DB: db} }

// ListForUserBook returns the user's bookmarks for a book, in page order.
func (r *BookmarkRepo) ListForUserBook(ctx context.Context, userID uint64, bookID string) ([]model.Bookmark, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, book_id, page, chapter, note, type, metadata, created_at
		   FROM bookmarks WHERE user_id=? AND book_id=? ORDER BY page, id`,
		userID, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Bookmark
	for rows.Next() {
		var (
			b        model.Bookmark
			chapter  sql.NullInt64
			note     sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.BookID, &b.Page, &chapter, &note, &b.Type, &metadata, &b.CreatedAt); err != nil {
			return nil, err
		}
		if chapter.Valid {
			ch := int(chapter.Int64)
			b.Chapter = &ch
		}
		if note.Valid {
			b.Note = &note.String
		}
		if metadata.Valid {
			b.Metadata = metadata.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddIfAbsent inserts a bookmark unless one already exists for the same
// user, book, page and chapter.  Deduplication is positional, not by
// content: a second note at the same spot is dropped, which matches how
// the renderer re-sends its full bookmark list on every progress sync.
func (r *BookmarkRepo) AddIfAbsent(ctx context.Context, b model.Bookmark) error {
	var chapter interface{}
	if b.Chapter != nil {
		chapter = *b.Chapter
	}
	var note interface{}
	if b.Note != nil {
		note = *b.Note
	}
	var exists int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM bookmarks WHERE user_id=? AND book_id=? AND page=? AND (chapter <=> ?)",
		b.UserID, b.BookID, b.Page, chapter).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO bookmarks (user_id, book_id, page, chapter, note, type, metadata) VALUES (?,?,?,?,?,?,?)",
		b.UserID, b.BookID, b.Page, chapter, note, b.Type, b.Metadata)
	return err
}

// Delete removes a bookmark owned by the user.  ErrForbidden when the row
// belongs to someone else, ErrNotFound when it does not exist.
func (r *BookmarkRepo) Delete(ctx context.Context, userID, id uint64) error {
	var owner uint64
	err := r.DB.QueryRowContext(ctx, "SELECT user_id FROM bookmarks WHERE id=? LIMIT 1", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx, "DELETE FROM bookmarks WHERE id=?", id)
	return err
}
