// Package kb loads the YAML knowledge base that defines personas and their
// curated semantic memories, and seeds them into the configured stores.
// Seeding computes embeddings on the way in, so the YAML files stay free of
// vector data.
package kb

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loomctx/loom/internal/embedding"
	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

// KnowledgeBase is the parsed contents of a knowledge base file.
type KnowledgeBase struct {
	Personas         []types.PersonaRecord  `yaml:"personas"`
	SemanticMemories []types.SemanticMemory `yaml:"semantic_memories"`
}

// Load reads and validates a knowledge base file.
func Load(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kb: read %s: %w", path, err)
	}

	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("kb: parse %s: %w", path, err)
	}

	if err := kb.Validate(); err != nil {
		return nil, fmt.Errorf("kb: %s: %w", path, err)
	}

	return &kb, nil
}

// Validate checks referential integrity: ids are present and unique, and
// every semantic memory points at a declared persona.
func (kb *KnowledgeBase) Validate() error {
	if len(kb.Personas) == 0 {
		return fmt.Errorf("no personas declared")
	}

	domains := make(map[string]bool, len(kb.Personas))
	for i, p := range kb.Personas {
		if p.ID == "" {
			return fmt.Errorf("persona %d: missing id", i)
		}
		if p.SemanticDescription == "" {
			return fmt.Errorf("persona %q: missing semantic_description", p.ID)
		}
		if domains[p.ID] {
			return fmt.Errorf("persona %q: duplicate id", p.ID)
		}
		domains[p.ID] = true
	}

	seen := make(map[string]bool, len(kb.SemanticMemories))
	for i, m := range kb.SemanticMemories {
		if m.ID == "" {
			return fmt.Errorf("semantic memory %d: missing id", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("semantic memory %q: duplicate id", m.ID)
		}
		seen[m.ID] = true
		if m.TextContent == "" {
			return fmt.Errorf("semantic memory %q: missing text_content", m.ID)
		}
		if !domains[m.DomainID] {
			return fmt.Errorf("semantic memory %q: unknown domain %q", m.ID, m.DomainID)
		}
	}

	return nil
}

// Seed embeds every record and upserts it into the stores. Seeding is
// idempotent: records are keyed by id, so re-running replaces rather than
// duplicates.
func (kb *KnowledgeBase) Seed(ctx context.Context, personas storage.PersonaStore, memories storage.MemoryStore, embedder embedding.Embedder) error {
	for i := range kb.Personas {
		p := kb.Personas[i]

		vector, err := embedder.Embed(ctx, p.SemanticDescription)
		if err != nil {
			return fmt.Errorf("kb: embed persona %q: %w", p.ID, err)
		}
		p.Embedding = vector

		if err := personas.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("kb: seed persona %q: %w", p.ID, err)
		}
	}

	for i := range kb.SemanticMemories {
		m := kb.SemanticMemories[i]

		vector, err := embedder.Embed(ctx, m.TextContent)
		if err != nil {
			return fmt.Errorf("kb: embed semantic memory %q: %w", m.ID, err)
		}
		m.Embedding = vector

		if err := memories.UpsertSemantic(ctx, &m); err != nil {
			return fmt.Errorf("kb: seed semantic memory %q: %w", m.ID, err)
		}
	}

	return nil
}
