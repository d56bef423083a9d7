package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic pseudo-embeddings from a text hash.
// It has no semantic value and exists for tests and offline development,
// where stability across runs matters more than meaning.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given
// dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed creates a deterministic unit vector from the FNV hash of text.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(text))
	seed := hasher.Sum64()

	vec := make([]float32, h.dimension)
	for i := range vec {
		// Linear congruential generator seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(vec), nil
}

// Dimension returns the embedding size.
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

// normalize scales vec to a unit vector so cosine similarity behaves.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
