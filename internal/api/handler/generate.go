package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/internal/api/response"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/internal/generate"
	"github.com/kiranshivaraju/synthgen/internal/logging"
	"github.com/kiranshivaraju/synthgen/internal/metrics"
	"github.com/kiranshivaraju/synthgen/internal/schema"
	"github.com/kiranshivaraju/synthgen/internal/store"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temp files.
const multipartMemory = 8 << 20

// auditTimeout bounds each run audit write made outside the request context.
const auditTimeout = 5 * time.Second

// ContextSource supplies similar-schema context for the generation prompt.
type ContextSource interface {
	SimilarContext(ctx context.Context, columns []string, description string) (string, error)
}

// StreamOpener turns a job into a stream, consulting the dataset cache.
type StreamOpener interface {
	Open(ctx context.Context, job *generate.Job) *generate.Stream
}

// RunRecorder writes the metadata-only audit trail. Optional.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.GenerationRun) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.RunUpdateOption) error
}

// GenerateDeps holds everything the dataset handler needs.
type GenerateDeps struct {
	Context ContextSource
	Streams StreamOpener
	Runs    RunRecorder
	Metrics *metrics.Metrics
	Limits  config.GenerationConfig
}

// datasetRequest is the validated form input.
type datasetRequest struct {
	columns     []string
	description string
	rows        int
	format      generate.Format
}

// NewGenerateHandler returns an http.HandlerFunc for
// POST /api/v1/generate-dataset.
//
// Anything that fails before the first byte is written is reported as a JSON
// error. Once streaming has started the status is already 200, so a failure
// aborts the connection and the client sees a truncated body.
func NewGenerateHandler(deps GenerateDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		log := logging.FromContext(ctx)

		req, code, err := parseDatasetRequest(w, r, deps.Limits)
		if err != nil {
			deps.Metrics.GenerationRequest("rejected")
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status, code = http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"
			}
			response.Error(w, status, code, err.Error(), nil)
			return
		}

		similar, err := deps.Context.SimilarContext(ctx, req.columns, req.description)
		if err != nil {
			log.Error("context retrieval failed", slog.String("error", err.Error()))
			deps.Metrics.GenerationRequest("failed")
			writeGenerationError(w, err)
			return
		}

		job, err := generate.NewJob(generate.JobParams{
			Columns:           req.columns,
			Description:       req.description,
			Domain:            deps.Limits.Domain,
			Context:           similar,
			Rows:              req.rows,
			Format:            req.format,
			MaxRows:           deps.Limits.MaxRows,
			CacheRowThreshold: deps.Limits.CacheRowThreshold,
		})
		if err != nil {
			deps.Metrics.GenerationRequest("rejected")
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		log = log.With(
			slog.String("cache_key", job.CacheKey),
			slog.Int("rows", job.TotalRows),
			slog.String("format", string(job.Format)),
		)

		stream := deps.Streams.Open(ctx, job)
		log.Info("dataset job started",
			slog.Bool("cacheable", job.Cacheable),
			slog.Bool("cache_hit", stream.CacheHit()),
		)
		run := startRun(ctx, deps.Runs, job, stream.CacheHit())

		sw := newStreamWriter(w, job, stream.CacheHit())
		res, err := stream.Emit(ctx, sw)
		if err == nil {
			finishRun(ctx, deps.Runs, run, models.RunStatusCompleted, res, "")
			deps.Metrics.GenerationRequest("completed")
			deps.Metrics.JobFinished("completed", start)
			log.Info("dataset generated",
				slog.Bool("cache_hit", res.CacheHit),
				slog.Int("rows_emitted", res.Rows),
				slog.Int64("bytes", res.Bytes),
			)
			return
		}

		finishRun(ctx, deps.Runs, run, models.RunStatusFailed, res, err.Error())
		deps.Metrics.GenerationRequest("failed")
		deps.Metrics.JobFinished("failed", start)

		// Once headers are committed a JSON error can no longer be sent.
		if sw.started {
			log.Error("dataset stream truncated",
				slog.Int("rows_emitted", res.Rows),
				slog.String("error", err.Error()),
			)
			panic(http.ErrAbortHandler)
		}

		log.Error("dataset generation failed", slog.String("error", err.Error()))
		writeGenerationError(w, err)
	}
}

// parseDatasetRequest reads the form and resolves the schema. On failure it
// also returns the error code to report.
func parseDatasetRequest(w http.ResponseWriter, r *http.Request, limits config.GenerationConfig) (*datasetRequest, string, error) {
	if limits.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUploadBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, "INVALID_REQUEST", fmt.Errorf("parsing form: %w", err)
	}

	req := &datasetRequest{rows: limits.DefaultRows}
	if v := strings.TrimSpace(r.FormValue("num_rows")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, "INVALID_REQUEST", fmt.Errorf("num_rows must be an integer, got %q", v)
		}
		req.rows = n
	}

	req.format, err = generate.ParseFormat(r.FormValue("format"))
	if err != nil {
		return nil, "INVALID_REQUEST", err
	}

	input, isFile, err := schemaInput(r, limits.MaxPromptChars)
	if err != nil {
		if errors.Is(err, schema.ErrPromptTooLong) {
			return nil, "INVALID_REQUEST", err
		}
		return nil, "INVALID_SCHEMA", err
	}

	req.columns, req.description, err = schema.Resolve(input, isFile)
	if err != nil {
		return nil, "INVALID_SCHEMA", err
	}
	return req, "", nil
}

// schemaInput prefers an uploaded file over the prompt field.
func schemaInput(r *http.Request, maxPromptChars int) (string, bool, error) {
	if r.MultipartForm != nil {
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return "", false, fmt.Errorf("%w: reading upload: %v", schema.ErrSchema, err)
			}
			return string(data), true, nil
		}
	}

	prompt, err := schema.SanitizePrompt(r.FormValue("prompt"), maxPromptChars)
	if err != nil {
		return "", false, err
	}
	if prompt == "" {
		return "", false, fmt.Errorf("%w: either prompt or file is required", schema.ErrSchema)
	}
	return prompt, false, nil
}

// writeGenerationError maps pipeline failures that happened before any
// output to a JSON error.
func writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generate.ErrInput):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, ai.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"Dataset generation took too long and was cancelled", nil)
	case errors.Is(err, ai.ErrProviderUnavailable):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	default:
		response.Error(w, http.StatusBadGateway, "DEPENDENCY_ERROR",
			"A dependency failed while generating the dataset", nil)
	}
}

// streamWriter commits the response headers on the first write, so errors
// that happen before any output can still become a JSON error response.
type streamWriter struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	job      *generate.Job
	cacheHit bool
	started  bool
}

func newStreamWriter(w http.ResponseWriter, job *generate.Job, cacheHit bool) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w), job: job, cacheHit: cacheHit}
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		h := s.w.Header()
		h.Set("Content-Type", s.job.Format.ContentType())
		h.Set("Content-Disposition", "attachment; filename="+s.job.Format.Filename())
		h.Set("X-Content-Type-Options", "nosniff")
		if s.cacheHit {
			h.Set("X-Cache", "HIT")
		} else {
			h.Set("X-Cache", "MISS")
		}
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(p)
}

// Flush pushes buffered bytes to the client. Writers that cannot flush are
// tolerated.
func (s *streamWriter) Flush() error {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func startRun(ctx context.Context, runs RunRecorder, job *generate.Job, cacheHit bool) *models.GenerationRun {
	if runs == nil {
		return nil
	}
	run := &models.GenerationRun{
		ID:       uuid.New(),
		CacheKey: job.CacheKey,
		Columns:  job.ColumnNames(),
		Rows:     job.TotalRows,
		Format:   string(job.Format),
		Status:   models.RunStatusPending,
		CacheHit: cacheHit,
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	log := logging.FromContext(ctx)
	if err := runs.CreateRun(actx, run); err != nil {
		log.Warn("create run audit failed", slog.String("error", err.Error()))
		return nil
	}
	if err := runs.UpdateRunStatus(actx, run.ID, models.RunStatusRunning); err != nil {
		log.Warn("update run audit failed", slog.String("run_id", run.ID.String()), slog.String("error", err.Error()))
	}
	return run
}

func finishRun(ctx context.Context, runs RunRecorder, run *models.GenerationRun, status string, res generate.Result, errMsg string) {
	if runs == nil || run == nil {
		return
	}
	opts := []store.RunUpdateOption{
		store.WithRowsEmitted(res.Rows),
		store.WithCacheHit(res.CacheHit),
	}
	if errMsg != "" {
		opts = append(opts, store.WithErrorMessage(errMsg))
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := runs.UpdateRunStatus(actx, run.ID, status, opts...); err != nil {
		logging.FromContext(ctx).Warn("update run audit failed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
