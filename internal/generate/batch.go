package generate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/kiranshivaraju/synthgen/internal/logging"
	"github.com/kiranshivaraju/synthgen/internal/metrics"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// DefaultBatchSize bounds how many rows are held in memory at once.
const DefaultBatchSize = 10000

// BatchGenerator produces a job's rows in fixed-size batches, filling Simple
// columns locally and Complex columns with one model call per batch.
type BatchGenerator struct {
	llm       models.TextGenerator
	batchSize int
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewBatchGenerator returns a generator. A non-positive batchSize selects
// DefaultBatchSize; a zero timeout leaves model calls bounded only by ctx.
func NewBatchGenerator(llm models.TextGenerator, batchSize int, timeout time.Duration, m *metrics.Metrics) *BatchGenerator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchGenerator{llm: llm, batchSize: batchSize, timeout: timeout, metrics: m}
}

// Batches returns the job's rows as a single-use sequence. Every batch but the
// last holds exactly the batch size. A model failure is yielded once as the
// final element and ends the sequence; nothing is retried.
func (g *BatchGenerator) Batches(ctx context.Context, job *Job, f *gofakeit.Faker) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		complexCols := complexColumns(job.Columns)

		for start := 0; start < job.TotalRows; start += g.batchSize {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			size := min(g.batchSize, job.TotalRows-start)

			var values [][]string
			if len(complexCols) > 0 {
				var err error
				values, err = g.complexValues(ctx, job, complexCols, size)
				if err != nil {
					yield(nil, fmt.Errorf("generating rows %d-%d: %w", start, start+size, err))
					return
				}
			}

			batch := make(Batch, size)
			for i := range batch {
				batch[i] = mergeRow(job.Columns, f, values, i)
			}

			g.metrics.BatchGenerated()
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func mergeRow(specs []ColumnSpec, f *gofakeit.Faker, values [][]string, i int) Row {
	row := make(Row, len(specs))
	ci := 0
	for _, s := range specs {
		if s.Kind == Simple {
			row[s.Name] = s.gen.value(f)
			continue
		}
		if i < len(values) {
			row[s.Name] = values[i][ci]
		} else {
			row[s.Name] = ""
		}
		ci++
	}
	return row
}

func (g *BatchGenerator) complexValues(ctx context.Context, job *Job, cols []string, size int) ([][]string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := g.llm.GenerateText(ctx, BuildPrompt(size, cols, job.Domain, job.Context))
	if err != nil {
		return nil, err
	}

	values := parseComplex(text, len(cols), size)
	if len(values) < size {
		logging.FromContext(ctx).Warn("model returned fewer rows than requested, padding with empty values",
			slog.String("provider", g.llm.Name()),
			slog.Int("requested", size),
			slog.Int("parsed", len(values)),
		)
	}
	return values, nil
}

// BuildPrompt is the instruction sent to the model for one batch.
func BuildPrompt(size int, cols []string, domain, similar string) string {
	return fmt.Sprintf(
		"Generate %d rows of realistic and diverse values for columns: %s\nDomain: %s\nSimilar contexts: %s\nOutput as CSV without header, one row per line.",
		size, strings.Join(cols, ", "), domain, similar,
	)
}

// parseComplex reads at most want CSV records of exactly width fields from
// model output. Records of the wrong width are skipped and a malformed
// record stops parsing.
func parseComplex(text string, width, want int) [][]string {
	r := csv.NewReader(strings.NewReader(stripFences(text)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	out := make([][]string, 0, want)
	for len(out) < want {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		if len(rec) != width {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// stripFences drops markdown code fence lines models like to wrap CSV in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
