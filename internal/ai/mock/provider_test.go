package mock_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/internal/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePrompt = "Generate 3 rows of realistic and diverse values for columns: product, notes\nDomain: retail\n"

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	assert.Equal(t, "mock", mock.NewMockProvider().Name())
}

func TestNewMockProvider_AnswersRequestedRows(t *testing.T) {
	p := mock.NewMockProvider()
	out, err := p.GenerateText(context.Background(), samplePrompt)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "product-0,notes-0", lines[0])
	assert.Equal(t, "product-2,notes-2", lines[2])
}

func TestNewMockProvider_CountsCalls(t *testing.T) {
	p := mock.NewMockProvider()
	ctx := context.Background()

	_, _ = p.GenerateText(ctx, "a")
	_, _ = p.GenerateText(ctx, "b")

	assert.Equal(t, 2, p.Calls())
	assert.Equal(t, []string{"a", "b"}, p.Prompts())
}

// --- NewStaticProvider ---

func TestNewStaticProvider(t *testing.T) {
	p := mock.NewStaticProvider("x,y\n")
	out, err := p.GenerateText(context.Background(), samplePrompt)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", out)
}

// --- NewFailingProvider ---

func TestNewFailingProvider(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	_, err := p.GenerateText(context.Background(), samplePrompt)
	assert.True(t, errors.Is(err, ai.ErrProviderUnavailable))
	assert.Equal(t, "mock-failing", p.Name())
}

// --- NewFailAfterProvider ---

func TestNewFailAfterProvider(t *testing.T) {
	p := mock.NewFailAfterProvider(1, ai.ErrInvalidResponse)
	ctx := context.Background()

	_, err := p.GenerateText(ctx, samplePrompt)
	require.NoError(t, err)

	_, err = p.GenerateText(ctx, samplePrompt)
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_BlocksUntilCancelled(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.GenerateText(ctx, samplePrompt)
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// --- Default zero-value provider ---

func TestZeroValueProvider(t *testing.T) {
	p := &mock.MockProvider{Name_: "custom"}
	out, err := p.GenerateText(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "custom", p.Name())
}
