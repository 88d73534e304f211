package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// GenerationRun is the metadata-only audit record of one dataset request.
// Generated values are never stored.
type GenerationRun struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	CacheKey     string     `db:"cache_key"     json:"cache_key"`
	Columns      []string   `db:"columns"       json:"columns"`
	Rows         int        `db:"row_count"     json:"rows"`
	Format       string     `db:"format"        json:"format"`
	Status       string     `db:"status"        json:"status"`
	CacheHit     bool       `db:"cache_hit"     json:"cache_hit"`
	RowsEmitted  int        `db:"rows_emitted"  json:"rows_emitted"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
