package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Video statuses, in lifecycle order. Rendering and publishing are
// terminal-failure-capable stages; "failed" carries ErrorMessage.
const (
	StatusDraft      = "draft"
	StatusReady      = "ready"
	StatusRendering  = "rendering"
	StatusRendered   = "rendered"
	StatusPublishing = "publishing"
	StatusPublished  = "published"
	StatusFailed     = "failed"
)

// Video is one project row: script, generated assets and render state.
type Video struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	Script       sql.NullString
	VideoStyle   sql.NullString
	Caption      sql.NullString
	Images       pq.StringArray
	AudioURL     sql.NullString
	VideoURL     sql.NullString
	WatchURL     sql.NullString
	Status       string
	Progress     int
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
