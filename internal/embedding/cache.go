package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached memoizes an Embedder with a ristretto cache keyed by input text.
// Persona descriptions and short user inputs repeat often (the orchestrator
// embeds the same input in both turn phases), so the cache keeps the
// embedding model off the hot path without any process-global state.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCached wraps inner with an in-process cache holding up to maxEntries
// vectors. Cost accounting is per entry, not per byte.
func NewCached(inner Embedder, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and storing it on miss.
// Cached vectors are returned as copies so callers can't corrupt the cache.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			return out, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Set(text, stored, 1)

	return vec, nil
}

// Dimension returns the wrapped embedder's dimension.
func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

// Wait blocks until buffered Sets have been applied. Mainly for tests.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}
