package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/synthgen/internal/retrieval"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := retrieval.NewHashEmbedder(0)
	a := e.Embed("name, age, city - customer list")
	b := e.Embed("Name, Age, City - Customer List")

	assert.Len(t, a, retrieval.DefaultDimensions)
	assert.Equal(t, a, b, "embedding is case-insensitive and stable")
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	v := retrieval.NewHashEmbedder(16).Embed(" ,.- ")
	assert.Len(t, v, 16)
	assert.Equal(t, 0.0, norm(v))
}

func TestMemoryStore_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := retrieval.NewMemoryStore()

	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "a", Description: "first"}))
	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "b", Description: "second"}))
	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "a", Description: "first again"}))

	all, err := s.ListDescriptions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	limited, err := s.ListDescriptions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_ListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := retrieval.NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: id}))
	}
	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "a"}))

	all, err := s.ListDescriptions(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, d := range all {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}

func TestMemoryStore_EvictsLeastRecentlyUpdated(t *testing.T) {
	ctx := context.Background()
	s := retrieval.NewMemoryStoreWithCapacity(3)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: id}))
	}
	// Touching "a" makes "b" the oldest.
	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "a"}))
	require.NoError(t, s.UpsertDescription(ctx, &models.SchemaDescription{ID: "d"}))

	assert.Equal(t, 3, s.Len())
	all, err := s.ListDescriptions(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, d := range all {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"d", "a", "c"}, ids)
}

func TestSimilarContext_MemoryStoreStaysBounded(t *testing.T) {
	ctx := context.Background()
	store := retrieval.NewMemoryStore()
	r := retrieval.NewRetriever(store, nil, 3, "general")

	total := retrieval.DefaultMemoryCapacity + 250
	for i := range total {
		_, err := r.SimilarContext(ctx, []string{fmt.Sprintf("col_%d", i)}, "distinct schema")
		require.NoError(t, err)
	}
	assert.Equal(t, retrieval.DefaultMemoryCapacity, store.Len())

	got, err := r.SimilarContext(ctx, []string{fmt.Sprintf("col_%d", total-1)}, "distinct schema")
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSimilarContext_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	r := retrieval.NewRetriever(retrieval.NewMemoryStore(), nil, 2, "general")

	_, err := r.SimilarContext(ctx, []string{"patient", "diagnosis", "ward"}, "hospital patient admissions")
	require.NoError(t, err)
	_, err = r.SimilarContext(ctx, []string{"ticker", "price", "volume"}, "stock market trades")
	require.NoError(t, err)
	_, err = r.SimilarContext(ctx, []string{"sku", "warehouse", "quantity"}, "inventory levels")
	require.NoError(t, err)

	got, err := r.SimilarContext(ctx, []string{"patient", "diagnosis", "doctor"}, "hospital patient visits")
	require.NoError(t, err)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hospital patient visits", lines[0], "the new schema is stored before ranking")
	assert.Equal(t, "hospital patient admissions", lines[1])
}

func TestSimilarContext_FirstRequestSeesItself(t *testing.T) {
	r := retrieval.NewRetriever(retrieval.NewMemoryStore(), nil, 0, "general")
	got, err := r.SimilarContext(context.Background(), []string{"name"}, "people")
	require.NoError(t, err)
	assert.Equal(t, "people", got)
}

type failingStore struct {
	upsertErr, listErr error
}

func (f failingStore) UpsertDescription(context.Context, *models.SchemaDescription) error {
	return f.upsertErr
}

func (f failingStore) ListDescriptions(context.Context, int) ([]models.SchemaDescription, error) {
	return nil, f.listErr
}

func TestSimilarContext_StoreFailures(t *testing.T) {
	boom := errors.New("connection refused")

	r := retrieval.NewRetriever(failingStore{upsertErr: boom}, nil, 3, "general")
	_, err := r.SimilarContext(context.Background(), []string{"a"}, "x")
	assert.ErrorIs(t, err, retrieval.ErrContext)

	r = retrieval.NewRetriever(failingStore{listErr: boom}, nil, 3, "general")
	_, err = r.SimilarContext(context.Background(), []string{"a"}, "x")
	assert.ErrorIs(t, err, retrieval.ErrContext)
}

func TestDescriptionID(t *testing.T) {
	id := retrieval.DescriptionID("name - people")
	assert.True(t, strings.HasPrefix(id, "dataset_"))
	assert.Len(t, id, len("dataset_")+64)
	assert.Equal(t, id, retrieval.DescriptionID("name - people"))
}
