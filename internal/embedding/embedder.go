// Package embedding defines the embedding boundary the orchestrator and the
// stores depend on: an opaque text-to-vector function with a fixed,
// deployment-time dimension.
//
// The embedder is an explicit, injected capability constructed once and
// passed by reference to every component that needs it; there is no ambient
// process-global model state.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch indicates that a produced or stored vector does not
// match the configured system dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder maps text to a fixed-dimension vector. Implementations must be
// deterministic for a given model version and safe for concurrent use.
type Embedder interface {
	// Embed returns the vector for text. The result always has exactly
	// Dimension() elements.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the system-wide embedding dimension D.
	Dimension() int
}

// Checked wraps an Embedder and enforces the configured dimension on every
// result, failing with ErrDimensionMismatch instead of letting a wrong-sized
// vector reach a store or a ranked query.
type Checked struct {
	inner     Embedder
	dimension int
}

// NewChecked wraps inner with a dimension guard. The dimension argument is
// the system-wide constant; it must match what inner claims to produce.
func NewChecked(inner Embedder, dimension int) (*Checked, error) {
	if inner == nil {
		return nil, errors.New("embedding: inner embedder is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dimension)
	}
	if inner.Dimension() != dimension {
		return nil, fmt.Errorf("%w: embedder produces dimension %d, system configured for %d",
			ErrDimensionMismatch, inner.Dimension(), dimension)
	}
	return &Checked{inner: inner, dimension: dimension}, nil
}

// Embed delegates to the wrapped embedder and verifies the result size.
func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), c.dimension)
	}
	return vec, nil
}

// Dimension returns the enforced dimension.
func (c *Checked) Dimension() int {
	return c.dimension
}
