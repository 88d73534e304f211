package retrieval

import (
	"context"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// DescriptionStore persists schema descriptions and their embeddings.
type DescriptionStore interface {
	UpsertDescription(ctx context.Context, d *models.SchemaDescription) error
	// ListDescriptions returns up to limit entries, most recently updated first.
	ListDescriptions(ctx context.Context, limit int) ([]models.SchemaDescription, error)
}

// DefaultMemoryCapacity matches the number of entries a lookup ranks, so a
// full store never holds descriptions no lookup can see.
const DefaultMemoryCapacity = scanLimit

// MemoryStore is a process-local DescriptionStore used when no database is
// configured. It keeps at most capacity entries and evicts the least
// recently updated one on insert.
type MemoryStore struct {
	mu    sync.Mutex
	items *lru.Cache[string, models.SchemaDescription]
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCapacity(DefaultMemoryCapacity)
}

// NewMemoryStoreWithCapacity returns a store holding at most capacity
// entries. A non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemoryStoreWithCapacity(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	items, err := lru.New[string, models.SchemaDescription](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &MemoryStore{items: items, now: time.Now}
}

func (m *MemoryStore) UpsertDescription(_ context.Context, d *models.SchemaDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cp := *d
	cp.Columns = slices.Clone(d.Columns)
	cp.Embedding = slices.Clone(d.Embedding)
	if prev, ok := m.items.Peek(d.ID); ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.items.Add(d.ID, cp)

	d.CreatedAt, d.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (m *MemoryStore) ListDescriptions(_ context.Context, limit int) ([]models.SchemaDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keys are ordered oldest to newest.
	keys := m.items.Keys()
	n := len(keys)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]models.SchemaDescription, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if d, ok := m.items.Peek(keys[i]); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Len reports how many descriptions are held.
func (m *MemoryStore) Len() int {
	return m.items.Len()
}

var _ DescriptionStore = (*MemoryStore)(nil)
