package retrieval

import (
	"math"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// DefaultDimensions is the embedding width used by NewHashEmbedder(0).
const DefaultDimensions = 256

// HashEmbedder maps text to a fixed-width vector with signed feature hashing
// of lowercase word unigrams and bigrams. It needs no model and is stable
// across processes, so stored vectors stay comparable.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed returns an L2-normalized vector, or all zeros for text without tokens.
func (e *HashEmbedder) Embed(text string) []float32 {
	vec := make([]float32, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, tok := range tokens {
		e.add(vec, tok)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok)
		}
	}
	normalize(vec)
	return vec
}

func (e *HashEmbedder) add(vec []float32, feature string) {
	h := xxh3.HashString(feature)
	idx := h % uint64(e.dims)
	// The top bit picks the sign so collisions cancel out on average.
	if h>>63 == 1 {
		vec[idx]--
	} else {
		vec[idx]++
	}
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// cosine assumes both vectors are L2-normalized and of equal length.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
