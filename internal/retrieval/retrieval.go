// Package retrieval supplies generation context: it remembers every schema
// description it sees and returns the descriptions most similar to a new one.
package retrieval

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kiranshivaraju/synthgen/internal/logging"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// ErrContext wraps every description store failure.
var ErrContext = errors.New("context retrieval failed")

const (
	DefaultTopK = 3
	// scanLimit caps how many stored descriptions are ranked per lookup.
	scanLimit = 1000
)

type Retriever struct {
	store    DescriptionStore
	embedder *HashEmbedder
	topK     int
	domain   string
}

func NewRetriever(store DescriptionStore, embedder *HashEmbedder, topK int, domain string) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if embedder == nil {
		embedder = NewHashEmbedder(0)
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, domain: domain}
}

// DescriptionID is the stable id under which a schema text is stored.
func DescriptionID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "dataset_" + hex.EncodeToString(sum[:])
}

// SimilarContext stores this schema, then returns the descriptions of the
// top-K most similar stored schemas joined by newlines. The schema just
// stored usually ranks first.
func (r *Retriever) SimilarContext(ctx context.Context, columns []string, description string) (string, error) {
	text := strings.Join(columns, ", ") + " - " + description
	vec := r.embedder.Embed(text)

	err := r.store.UpsertDescription(ctx, &models.SchemaDescription{
		ID:          DescriptionID(text),
		Columns:     columns,
		Description: description,
		Domain:      r.domain,
		Embedding:   vec,
	})
	if err != nil {
		return "", fmt.Errorf("%w: storing description: %v", ErrContext, err)
	}

	stored, err := r.store.ListDescriptions(ctx, scanLimit)
	if err != nil {
		return "", fmt.Errorf("%w: listing descriptions: %v", ErrContext, err)
	}

	type scored struct {
		desc  string
		score float64
	}
	ranked := make([]scored, 0, len(stored))
	for _, d := range stored {
		ranked = append(ranked, scored{desc: d.Description, score: cosine(vec, d.Embedding)})
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}

	descs := make([]string, len(ranked))
	for i, s := range ranked {
		descs[i] = s.desc
	}

	logging.FromContext(ctx).Debug("context retrieved",
		slog.Int("candidates", len(stored)),
		slog.Int("returned", len(descs)),
	)
	return strings.Join(descs, "\n"), nil
}
