package mock

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kiranshivaraju/synthgen/internal/ai"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

var (
	reRowCount = regexp.MustCompile(`Generate (\d+) rows`)
	reColumns  = regexp.MustCompile(`columns: ([^\n]*)`)
)

// MockProvider satisfies models.TextGenerator for testing and counts calls.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Calls returns how many times GenerateText was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// NewMockProvider returns a MockProvider that answers every prompt with the
// requested number of CSV rows, each value shaped "<column>-<row>".
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, prompt string) (string, error) {
			n, cols := parsePrompt(prompt)
			var sb strings.Builder
			for i := 0; i < n; i++ {
				for j, col := range cols {
					if j > 0 {
						sb.WriteByte(',')
					}
					fmt.Fprintf(&sb, "%s-%d", col, i)
				}
				sb.WriteByte('\n')
			}
			return sb.String(), nil
		},
	}
}

// NewStaticProvider returns a MockProvider that always answers with text.
func NewStaticProvider(text string) *MockProvider {
	return &MockProvider{
		Name_: "mock-static",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return text, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewFailAfterProvider behaves like NewMockProvider for the first n calls
// and returns err afterwards.
func NewFailAfterProvider(n int, err error) *MockProvider {
	ok := NewMockProvider()
	m := &MockProvider{Name_: "mock-fail-after"}
	m.GenerateFunc = func(ctx context.Context, prompt string) (string, error) {
		if m.Calls() > n {
			return "", err
		}
		return ok.GenerateFunc(ctx, prompt)
	}
	return m
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

func parsePrompt(prompt string) (int, []string) {
	n := 0
	if m := reRowCount.FindStringSubmatch(prompt); m != nil {
		n, _ = strconv.Atoi(m[1])
	}
	var cols []string
	if m := reColumns.FindStringSubmatch(prompt); m != nil {
		for _, c := range strings.Split(m[1], ",") {
			cols = append(cols, strings.TrimSpace(c))
		}
	}
	return n, cols
}

// Compile-time check that MockProvider implements TextGenerator.
var _ models.TextGenerator = (*MockProvider)(nil)
