package models

import "time"

// SchemaDescription is a previously requested schema kept for context
// retrieval. Only column names and the free-text description are stored.
type SchemaDescription struct {
	ID          string    `db:"id"          json:"id"`
	Columns     []string  `db:"columns"     json:"columns"`
	Description string    `db:"description" json:"description"`
	Domain      string    `db:"domain"      json:"domain"`
	Embedding   []float32 `db:"embedding"   json:"-"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}
