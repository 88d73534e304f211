package generate_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/internal/ai/mock"
	"github.com/kiranshivaraju/synthgen/internal/generate"
)

func newJob(t *testing.T, columns []string, rows int, format generate.Format) *generate.Job {
	t.Helper()
	job, err := generate.NewJob(generate.JobParams{
		Columns:           columns,
		Description:       "test dataset",
		Domain:            "general",
		Rows:              rows,
		Format:            format,
		CacheRowThreshold: 10000,
	})
	require.NoError(t, err)
	return job
}

func collect(t *testing.T, g *generate.BatchGenerator, job *generate.Job) ([]generate.Batch, error) {
	t.Helper()
	var out []generate.Batch
	for b, err := range g.Batches(context.Background(), job, gofakeit.New(7)) {
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, nil
}

func TestClassify(t *testing.T) {
	specs := generate.Classify([]string{"name", "AGE", "City", "notes", "email_address"})

	kinds := make([]generate.ColumnKind, len(specs))
	for i, s := range specs {
		kinds[i] = s.Kind
	}
	assert.Equal(t, []generate.ColumnKind{
		generate.Simple, generate.Simple, generate.Simple, generate.Complex, generate.Complex,
	}, kinds)
	assert.Equal(t, "AGE", specs[1].Name)
}

func TestParseFormat(t *testing.T) {
	tests := map[string]generate.Format{
		"":       generate.FormatCSV,
		"csv":    generate.FormatCSV,
		"CSV":    generate.FormatCSV,
		"json":   generate.FormatJSON,
		"ndjson": generate.FormatJSON,
	}
	for in, want := range tests {
		got, err := generate.ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := generate.ParseFormat("xml")
	assert.ErrorIs(t, err, generate.ErrInvalidFormat)
	assert.ErrorIs(t, err, generate.ErrInput)
}

func TestFormat_Headers(t *testing.T) {
	assert.Equal(t, "text/csv", generate.FormatCSV.ContentType())
	assert.Equal(t, "application/ndjson", generate.FormatJSON.ContentType())
	assert.Equal(t, "dataset.csv", generate.FormatCSV.Filename())
	assert.Equal(t, "dataset.json", generate.FormatJSON.Filename())
}

func TestNewJob_Validation(t *testing.T) {
	base := generate.JobParams{Columns: []string{"name"}, Rows: 10, Format: generate.FormatCSV}

	tests := []struct {
		name    string
		mutate  func(p *generate.JobParams)
		wantErr error
	}{
		{"no columns", func(p *generate.JobParams) { p.Columns = nil }, generate.ErrNoColumns},
		{"duplicate column", func(p *generate.JobParams) { p.Columns = []string{"a", "a"} }, generate.ErrBadColumn},
		{"empty column", func(p *generate.JobParams) { p.Columns = []string{"a", ""} }, generate.ErrBadColumn},
		{"zero rows", func(p *generate.JobParams) { p.Rows = 0 }, generate.ErrInvalidRowCount},
		{"too many rows", func(p *generate.JobParams) { p.MaxRows = 5 }, generate.ErrTooManyRows},
		{"bad format", func(p *generate.JobParams) { p.Format = "xml" }, generate.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := generate.NewJob(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, generate.ErrInput)
		})
	}
}

func TestNewJob_Cacheable(t *testing.T) {
	small := newJob(t, []string{"name"}, 10000, generate.FormatCSV)
	large := newJob(t, []string{"name"}, 10001, generate.FormatCSV)

	assert.True(t, small.Cacheable)
	assert.False(t, large.Cacheable)
}

func TestNewJob_CacheKey(t *testing.T) {
	a := newJob(t, []string{"name", "age"}, 10, generate.FormatCSV)
	b := newJob(t, []string{"name", "age"}, 10, generate.FormatCSV)
	c := newJob(t, []string{"name", "age"}, 10, generate.FormatJSON)
	d := newJob(t, []string{"age", "name"}, 10, generate.FormatCSV)

	assert.Equal(t, a.CacheKey, b.CacheKey)
	assert.NotEqual(t, a.CacheKey, c.CacheKey)
	assert.NotEqual(t, a.CacheKey, d.CacheKey)
	assert.True(t, strings.HasPrefix(a.CacheKey, "dataset:"))
	assert.Len(t, strings.TrimPrefix(a.CacheKey, "dataset:"), 64)
}

func TestBatches_SizesFollowBatchBoundaries(t *testing.T) {
	llm := mock.NewMockProvider()
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"name", "notes"}, 25, generate.FormatCSV)

	batches, err := collect(t, g, job)
	require.NoError(t, err)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 5)
	assert.Equal(t, 3, llm.Calls())
	assert.Contains(t, llm.Prompts()[2], "Generate 5 rows")
	assert.Equal(t, "notes-4", batches[2][4]["notes"])
}

func TestBatches_SimpleOnlySkipsModel(t *testing.T) {
	llm := mock.NewMockProvider()
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"name", "age", "city", "email", "phone"}, 12, generate.FormatCSV)

	batches, err := collect(t, g, job)
	require.NoError(t, err)

	assert.Len(t, batches, 2)
	assert.Equal(t, 0, llm.Calls())
	for _, row := range batches[0] {
		assert.Len(t, row, 5)
		assert.NotEmpty(t, row["name"])
	}
}

func TestBatches_PromptCarriesDomainAndContext(t *testing.T) {
	llm := mock.NewMockProvider()
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job, err := generate.NewJob(generate.JobParams{
		Columns: []string{"diagnosis", "ward"},
		Domain:  "healthcare",
		Context: "hospital admissions",
		Rows:    2,
		Format:  generate.FormatCSV,
	})
	require.NoError(t, err)

	_, err = collect(t, g, job)
	require.NoError(t, err)

	prompt := llm.Prompts()[0]
	assert.Equal(t, generate.BuildPrompt(2, []string{"diagnosis", "ward"}, "healthcare", "hospital admissions"), prompt)
	assert.Contains(t, prompt, "columns: diagnosis, ward")
	assert.Contains(t, prompt, "Domain: healthcare")
	assert.Contains(t, prompt, "Similar contexts: hospital admissions")
}

func TestBatches_ShortOutputIsPadded(t *testing.T) {
	llm := mock.NewStaticProvider("a1,b1\nonly-one-field\na2,b2\n")
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"a", "b"}, 5, generate.FormatCSV)

	batches, err := collect(t, g, job)
	require.NoError(t, err)
	require.Len(t, batches, 1)

	batch := batches[0]
	require.Len(t, batch, 5)
	assert.Equal(t, generate.Row{"a": "a1", "b": "b1"}, batch[0])
	assert.Equal(t, generate.Row{"a": "a2", "b": "b2"}, batch[1])
	for _, row := range batch[2:] {
		assert.Equal(t, generate.Row{"a": "", "b": ""}, row)
	}
	assert.Equal(t, 1, llm.Calls(), "short output must not trigger a retry")
}

func TestBatches_ExtraOutputIsTrimmed(t *testing.T) {
	llm := mock.NewStaticProvider("```csv\nx,1\ny,2\nz,3\n```")
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"label", "score"}, 2, generate.FormatCSV)

	batches, err := collect(t, g, job)
	require.NoError(t, err)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "x", batches[0][0]["label"])
	assert.Equal(t, "y", batches[0][1]["label"])
}

func TestBatches_ModelFailureAbortsJob(t *testing.T) {
	llm := mock.NewFailAfterProvider(1, ai.ErrProviderUnavailable)
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"notes"}, 30, generate.FormatCSV)

	batches, err := collect(t, g, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Len(t, batches, 1)
	assert.Equal(t, 2, llm.Calls())
}

func TestBatches_InferenceTimeout(t *testing.T) {
	g := generate.NewBatchGenerator(mock.NewTimeoutProvider(), 10, 20*time.Millisecond, nil)
	job := newJob(t, []string{"notes"}, 3, generate.FormatCSV)

	_, err := collect(t, g, job)
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

func TestBatches_StopsWhenContextCancelled(t *testing.T) {
	llm := mock.NewMockProvider()
	g := generate.NewBatchGenerator(llm, 10, 0, nil)
	job := newJob(t, []string{"notes"}, 100, generate.FormatCSV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var gotErr error
	n := 0
	for _, err := range g.Batches(ctx, job, gofakeit.New(1)) {
		if err != nil {
			gotErr = err
			break
		}
		n++
		cancel()
	}

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, 1, llm.Calls())
}

func TestValidator_RepairsAge(t *testing.T) {
	specs := generate.Classify([]string{"age", "patient_age", "notes"})
	v := generate.NewValidator(specs, gofakeit.New(3))

	for _, bad := range []string{"abc", "", "0", "120", "-5", "250", "4.5"} {
		row := generate.Row{"age": bad, "patient_age": bad, "notes": bad}
		v.Validate(row)

		for _, col := range []string{"age", "patient_age"} {
			n, err := strconv.Atoi(row[col])
			require.NoError(t, err, "column %s from %q", col, bad)
			assert.GreaterOrEqual(t, n, 18)
			assert.LessOrEqual(t, n, 90)
		}
		assert.Equal(t, bad, row["notes"], "unrelated column must be untouched")
	}
}

func TestValidator_KeepsPlausibleAge(t *testing.T) {
	v := generate.NewValidator(generate.Classify([]string{"age"}), gofakeit.New(3))
	for _, ok := range []string{"1", "45", "119"} {
		row := generate.Row{"age": ok}
		v.Validate(row)
		assert.Equal(t, ok, row["age"])
	}
}

func TestValidator_RepairsEmail(t *testing.T) {
	v := generate.NewValidator(generate.Classify([]string{"email", "manager_email"}), gofakeit.New(3))

	row := generate.Row{"email": "not-an-email", "manager_email": "Bob <bob@example.com>"}
	v.Validate(row)
	assert.NotEqual(t, "not-an-email", row["email"])
	assert.Contains(t, row["email"], "@")
	assert.Contains(t, row["manager_email"], "@")
	assert.NotContains(t, row["manager_email"], "<")

	row = generate.Row{"email": "alice@example.org", "manager_email": "m.smith@corp.co"}
	v.Validate(row)
	assert.Equal(t, "alice@example.org", row["email"])
	assert.Equal(t, "m.smith@corp.co", row["manager_email"])
}

func TestValidator_FillsMissingColumns(t *testing.T) {
	v := generate.NewValidator(generate.Classify([]string{"notes", "status"}), gofakeit.New(3))
	row := generate.Row{"notes": "x"}
	v.Validate(row)
	assert.Equal(t, generate.Row{"notes": "x", "status": ""}, row)
}

func TestAnonymizer_RedactsEmail(t *testing.T) {
	a := generate.NewAnonymizer()
	row := generate.Row{"contact": "bob@example.com", "note": "mail bob@example.com or ann@test.io today"}
	a.Anonymize(row)

	assert.Equal(t, generate.EmailPlaceholder, row["contact"])
	assert.Equal(t, "mail anonymous@email.com or anonymous@email.com today", row["note"])
}

func TestAnonymizer_RedactsSSN(t *testing.T) {
	a := generate.NewAnonymizer()
	row := generate.Row{"id": "ssn 123-45-6789", "zip": "12345"}
	a.Anonymize(row)

	assert.Equal(t, "ssn ***-**-****", row["id"])
	assert.Equal(t, "12345", row["zip"])
}

func TestAnonymizer_Idempotent(t *testing.T) {
	a := generate.NewAnonymizer()
	inputs := []string{
		"",
		"plain text",
		"bob@example.com",
		"a@b.co@c.de",
		"x.bob@example.com.y@z.io",
		"123-45-6789-12-3456",
		"anonymous@email.com",
		"call 555-12-1234 or mail q@w.er",
	}
	for _, in := range inputs {
		once := generate.Row{"v": in}
		a.Anonymize(once)
		twice := generate.Row{"v": once["v"]}
		a.Anonymize(twice)
		assert.Equal(t, once["v"], twice["v"], "input %q", in)
	}
}

func TestAnonymizer_CustomRules(t *testing.T) {
	a := generate.NewAnonymizer(generate.SSNRule)
	row := generate.Row{"v": "bob@example.com 123-45-6789"}
	a.Anonymize(row)
	assert.Equal(t, "bob@example.com ***-**-****", row["v"])
}

func TestStreamError_Unwrap(t *testing.T) {
	err := error(&generate.StreamError{Started: true, Rows: 3, Err: ai.ErrInferenceTimeout})
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)

	var se *generate.StreamError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Started)
	assert.Contains(t, err.Error(), "3 rows")
}
