package model

import "time"

// Setting keys recognised by the platform.
const (
	SettingBookExpiryDays = "book_access_expiry_days" // 0 means book tokens never expire
	SettingReaderBaseURL  = "reader_base_url"
)

// Setting is a row in the `settings` table, an admin-editable key/value
// store for knobs that must change without a redeploy.
type Setting struct {
	Key       string    // settings.key
	Value     string    // settings.value
	UpdatedAt time.Time // settings.updated_at
}
