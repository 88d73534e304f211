// Package generate implements the dataset pipeline: column classification,
// batched row generation, row repair, redaction, and the streaming/caching
// assembler that turns a Job into output lines.
package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/synthgen/internal/cache"
)

// ErrInput marks caller mistakes that are reported before any byte is streamed.
var ErrInput = errors.New("invalid generation input")

var (
	ErrInvalidFormat   = fmt.Errorf("%w: format must be csv or json", ErrInput)
	ErrInvalidRowCount = fmt.Errorf("%w: row count must be positive", ErrInput)
	ErrTooManyRows     = fmt.Errorf("%w: row count exceeds the configured maximum", ErrInput)
	ErrNoColumns       = fmt.Errorf("%w: at least one column is required", ErrInput)
	ErrBadColumn       = fmt.Errorf("%w: column names must be unique and non-empty", ErrInput)
)

// Format selects how rows are serialized.
type Format string

const (
	FormatCSV Format = "csv"
	// FormatJSON streams newline-delimited JSON objects.
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, json and ndjson, case-insensitively. An empty
// string selects csv.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "json", "ndjson":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrInvalidFormat, s)
	}
}

func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/ndjson"
	}
	return "text/csv"
}

// Filename is the attachment name advertised to clients.
func (f Format) Filename() string {
	return "dataset." + string(f)
}

// Row maps column name to value. Its keys always equal the job's columns.
type Row map[string]string

// Batch is an ordered group of rows.
type Batch []Row

// Job is one generation request. It is immutable once built by NewJob.
type Job struct {
	Columns     []ColumnSpec
	Description string
	Domain      string
	Context     string
	TotalRows   int
	Format      Format
	CacheKey    string
	Cacheable   bool
}

// JobParams carries the raw request values NewJob validates.
type JobParams struct {
	Columns     []string
	Description string
	Domain      string
	Context     string
	Rows        int
	Format      Format

	// MaxRows of zero means unbounded.
	MaxRows           int
	CacheRowThreshold int
}

func NewJob(p JobParams) (*Job, error) {
	if len(p.Columns) == 0 {
		return nil, ErrNoColumns
	}
	seen := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		if c == "" || seen[c] {
			return nil, fmt.Errorf("%w: %q", ErrBadColumn, c)
		}
		seen[c] = true
	}
	if p.Rows <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRowCount, p.Rows)
	}
	if p.MaxRows > 0 && p.Rows > p.MaxRows {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyRows, p.Rows, p.MaxRows)
	}
	if p.Format != FormatCSV && p.Format != FormatJSON {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidFormat, p.Format)
	}

	return &Job{
		Columns:     Classify(p.Columns),
		Description: p.Description,
		Domain:      p.Domain,
		Context:     p.Context,
		TotalRows:   p.Rows,
		Format:      p.Format,
		CacheKey:    cache.DatasetKey(ContentHash(p.Columns, p.Description, p.Rows, p.Format, p.Context)),
		Cacheable:   p.Rows <= p.CacheRowThreshold,
	}, nil
}

// ColumnNames returns the job's columns in output order.
func (j *Job) ColumnNames() []string {
	names := make([]string, len(j.Columns))
	for i, c := range j.Columns {
		names[i] = c.Name
	}
	return names
}

// ContentHash is the hex SHA-256 of the canonical JSON encoding of every
// input that influences a job's output.
func ContentHash(columns []string, description string, rows int, format Format, context string) string {
	// Field order is fixed by the struct, which keeps the encoding canonical.
	payload, _ := json.Marshal(struct {
		Columns     []string `json:"columns"`
		Description string   `json:"description"`
		Rows        int      `json:"rows"`
		Format      Format   `json:"format"`
		Context     string   `json:"context"`
	}{columns, description, rows, format, context})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
