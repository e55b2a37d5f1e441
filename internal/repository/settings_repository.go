package repository

import (
	"context"
	"database/sql"
	"strconv"
)

// SettingsRepo reads and writes the admin-editable settings table.
type SettingsRepo struct{ DB *sql.DB }

func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{DB: db} }

// Get returns the value for key, or ErrNotFound.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE `key`=? LIMIT 1", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

// GetInt returns the integer value for key, falling back to def when the
// key is missing or unparsable.
func (r *SettingsRepo) GetInt(ctx context.Context, key string, def int) int {
	v, err := r.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Set upserts a setting.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO settings (`key`, value) VALUES (?,?) ON DUPLICATE KEY UPDATE value=VALUES(value), updated_at=UTC_TIMESTAMP()",
		key, value)
	return err
}
