package embedding

import (
	"context"
	"fmt"

	"github.com/loomctx/loom/internal/llm"
)

// GeneratorEmbedder adapts an llm.EmbeddingGenerator (Ollama, OpenAI) to the
// Embedder boundary, pinning it to the system dimension. The generator's
// actual output size is verified on every call since remote models cannot be
// interrogated for their dimension up front.
type GeneratorEmbedder struct {
	gen       llm.EmbeddingGenerator
	dimension int
}

// NewGeneratorEmbedder wraps gen, declaring that it produces vectors of the
// given dimension.
func NewGeneratorEmbedder(gen llm.EmbeddingGenerator, dimension int) (*GeneratorEmbedder, error) {
	if gen == nil {
		return nil, fmt.Errorf("embedding: embedding generator is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dimension)
	}
	return &GeneratorEmbedder{gen: gen, dimension: dimension}, nil
}

// Embed delegates to the generator and verifies the declared dimension.
func (g *GeneratorEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.gen.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != g.dimension {
		return nil, fmt.Errorf("%w: model %q returned %d, configured for %d",
			ErrDimensionMismatch, g.gen.GetModel(), len(vec), g.dimension)
	}
	return vec, nil
}

// Dimension returns the declared dimension.
func (g *GeneratorEmbedder) Dimension() int {
	return g.dimension
}
