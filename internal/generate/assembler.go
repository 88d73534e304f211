package generate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/kiranshivaraju/synthgen/internal/logging"
	"github.com/kiranshivaraju/synthgen/internal/metrics"
)

// DefaultCacheTTL is how long a completed dataset stays replayable.
const DefaultCacheTTL = time.Hour

// cacheWriteTimeout bounds the single cache write after a job completes.
const cacheWriteTimeout = 5 * time.Second

// Store is the subset of the cache the assembler needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Assembler turns jobs into output lines, replaying cached bodies when it can
// and populating the cache after complete cacheable runs.
type Assembler struct {
	store      Store
	gen        *BatchGenerator
	anonymizer *Anonymizer
	ttl        time.Duration
	metrics    *metrics.Metrics
	newFaker   func() *gofakeit.Faker
}

type AssemblerOption func(*Assembler)

// WithAnonymizer replaces the default redaction rules.
func WithAnonymizer(a *Anonymizer) AssemblerOption {
	return func(as *Assembler) { as.anonymizer = a }
}

// WithFakerSource makes local values reproducible, mostly for tests.
func WithFakerSource(fn func() *gofakeit.Faker) AssemblerOption {
	return func(as *Assembler) { as.newFaker = fn }
}

// NewAssembler builds an Assembler. A nil store disables both lookup and write.
func NewAssembler(store Store, gen *BatchGenerator, ttl time.Duration, m *metrics.Metrics, opts ...AssemblerOption) *Assembler {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	a := &Assembler{
		store:      store,
		gen:        gen,
		anonymizer: NewAnonymizer(),
		ttl:        ttl,
		metrics:    m,
		newFaker:   func() *gofakeit.Faker { return gofakeit.New(0) },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open looks the job up in the cache. A failed lookup counts as a miss.
func (a *Assembler) Open(ctx context.Context, job *Job) *Stream {
	s := &Stream{a: a, job: job}
	if a.store == nil {
		return s
	}

	body, found, err := a.store.Get(ctx, job.CacheKey)
	switch {
	case err != nil:
		a.metrics.CacheLookup(metrics.LookupError)
		logging.FromContext(ctx).Warn("dataset cache lookup failed, regenerating",
			slog.String("cache_key", job.CacheKey),
			slog.String("error", err.Error()),
		)
	case found && len(body) > 0:
		a.metrics.CacheLookup(metrics.LookupHit)
		s.cached = body
	default:
		a.metrics.CacheLookup(metrics.LookupMiss)
	}
	return s
}

// Stream is a single-use handle on one job's output.
type Stream struct {
	a      *Assembler
	job    *Job
	cached []byte
}

func (s *Stream) CacheHit() bool { return s.cached != nil }

func (s *Stream) Job() *Job { return s.job }

// Lines yields the output one newline-terminated line at a time, header
// first for CSV. On a cache hit it replays the stored body; otherwise each
// row is validated, redacted and yielded as soon as it is ready. The CSV
// header is held back until the first batch exists so a failing first model
// call surfaces before any output. The cache is written only after the last
// line was accepted; stopping early or failing discards the accumulator.
func (s *Stream) Lines(ctx context.Context) iter.Seq2[[]byte, error] {
	if s.cached != nil {
		return s.replay(ctx)
	}
	return s.generate(ctx)
}

func (s *Stream) replay(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		rest := s.cached
		for len(rest) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			line := rest
			if i := bytes.IndexByte(rest, '\n'); i >= 0 {
				line = rest[:i+1]
			}
			rest = rest[len(line):]
			if !yield(line, nil) {
				return
			}
		}
	}
}

func (s *Stream) generate(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		job, a := s.job, s.a
		f := a.newFaker()
		validator := NewValidator(job.Columns, f)

		var acc *bytes.Buffer
		if job.Cacheable && a.store != nil {
			acc = new(bytes.Buffer)
		}
		emit := func(line []byte) bool {
			if acc != nil {
				acc.Write(line)
			}
			return yield(line, nil)
		}

		headerSent := false
		for batch, err := range a.gen.Batches(ctx, job, f) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !headerSent {
				headerSent = true
				if h := header(job); h != nil && !emit(h) {
					return
				}
			}
			for _, row := range batch {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				validator.Validate(row)
				a.anonymizer.Anonymize(row)
				if !emit(formatRow(job, row)) {
					return
				}
			}
		}

		if acc != nil {
			a.writeCache(ctx, job.CacheKey, acc.Bytes())
		}
	}
}

// writeCache outlives request cancellation; failures are logged and dropped.
func (a *Assembler) writeCache(ctx context.Context, key string, body []byte) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	if err := a.store.Set(wctx, key, body, a.ttl); err != nil {
		a.metrics.CacheWrite("error")
		logging.FromContext(ctx).Warn("dataset cache write failed",
			slog.String("cache_key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	a.metrics.CacheWrite("ok")
}

// Result summarizes a finished Emit.
type Result struct {
	CacheHit bool
	Rows     int
	Bytes    int64
}

// StreamError reports a failure during Emit. Started is true once a write
// was attempted, even one that failed, after which the caller can only
// truncate.
type StreamError struct {
	Started bool
	Rows    int
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("dataset stream failed after %d rows: %v", e.Rows, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

type flusher interface {
	Flush() error
}

// Emit writes every line to w, flushing after each one when w supports it.
func (s *Stream) Emit(ctx context.Context, w io.Writer) (Result, error) {
	res := Result{CacheHit: s.CacheHit()}
	headerPending := s.job.Format == FormatCSV
	fl, _ := w.(flusher)

	var streamErr error
	started := false
	for line, err := range s.Lines(ctx) {
		if err != nil {
			streamErr = err
			break
		}
		started = true
		n, err := w.Write(line)
		res.Bytes += int64(n)
		if err != nil {
			streamErr = fmt.Errorf("writing output: %w", err)
			break
		}
		if fl != nil {
			if err := fl.Flush(); err != nil {
				streamErr = fmt.Errorf("flushing output: %w", err)
				break
			}
		}
		if headerPending {
			headerPending = false
			continue
		}
		res.Rows++
	}

	s.a.metrics.RowsEmitted(string(s.job.Format), res.Rows)
	if streamErr != nil {
		return res, &StreamError{Started: started, Rows: res.Rows, Err: streamErr}
	}
	return res, nil
}
