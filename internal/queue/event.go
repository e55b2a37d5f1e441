package queue

// Telemetry event kinds.
const (
	KindPageEngagement = "page_engagement"
	KindSessionClosed  = "session_closed"
)

// TelemetryEvent is published on the reading.telemetry queue whenever the
// external renderer reports engagement or closes a reading session.  It
// carries enough information for downstream consumers to log or feed
// dashboards without querying the primary database.  Publishing is
// best-effort: losing an event never fails the reader's page load.
type TelemetryEvent struct {
	Kind          string `json:"kind"`
	UserID        uint64 `json:"user_id"`
	BookID        string `json:"book_id"`
	SessionID     string `json:"session_id"`
	Page          int    `json:"page,omitempty"`
	TimeOnPageMs  int64  `json:"time_on_page_ms,omitempty"`
	Interactions  int    `json:"interactions,omitempty"`
	Completed     bool   `json:"completed,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
