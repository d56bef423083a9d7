// Package llm provides clients for the two opaque model boundaries the
// system depends on: text completion (the downstream LLM call) and text
// embedding. The orchestrator core never imports a concrete client; callers
// wire one in through the factory.
package llm

import "context"

// TextGenerator is the interface for LLM text completion. The core treats
// completion as opaque text-in/text-out; latency and retry policy belong to
// the caller.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
