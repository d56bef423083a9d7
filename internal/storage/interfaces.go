// Package storage provides the provider contracts the orchestrator depends
// on: persona/domain routing, memory retrieval and logging, and per-user
// session workspace persistence.
//
// The contracts are small and independent so backends can be implemented and
// composed separately. Persona and semantic records are read-mostly and safe
// for concurrent reads; workspace rows are per-user and serialized by the
// orchestrator.
package storage

import (
	"context"

	"github.com/loomctx/loom/pkg/types"
)

// PersonaStore holds domain/persona definitions with vector-indexed semantic
// descriptions and answers "which domain best matches this input?".
type PersonaStore interface {
	// Upsert creates or updates a persona (merge semantics keyed by ID).
	Upsert(ctx context.Context, persona *types.PersonaRecord) error

	// Get retrieves a persona by domain id.
	// Returns ErrNotFound if no such persona exists.
	Get(ctx context.Context, id string) (*types.PersonaRecord, error)

	// Match ranks all personas by similarity between the query vector and
	// each persona's stored embedding, best first. Returns an empty slice
	// (not an error) when no personas are configured.
	Match(ctx context.Context, query []float32, limit int) ([]PersonaMatch, error)

	// List returns all personas. Order is unspecified.
	List(ctx context.Context) ([]types.PersonaRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore holds the two kinds of long-term memory records: semantic
// (durable domain knowledge) and episodic (per-turn interaction log).
// Both retrieval streams are scoped to a domain id as a hard filter.
type MemoryStore interface {
	// UpsertSemantic creates or updates a semantic memory (merge semantics
	// keyed by ID). Semantic memories are curated out-of-band; the
	// orchestrator itself only reads them.
	UpsertSemantic(ctx context.Context, memory *types.SemanticMemory) error

	// SearchSemantic returns up to opts.Limit semantic memories belonging
	// to domainID, ranked by similarity to the query vector, ties broken
	// by insertion order. Fewer than Limit results is not an error.
	SearchSemantic(ctx context.Context, domainID string, query []float32, opts RetrievalOptions) ([]types.SemanticMemory, error)

	// SearchEpisodic returns up to opts.Limit episodic memories belonging
	// to userID within domainID, ranked by similarity to the query vector,
	// ties broken by most-recent timestamp. Fewer than Limit results is
	// not an error.
	SearchEpisodic(ctx context.Context, userID, domainID string, query []float32, opts RetrievalOptions) ([]types.EpisodicMemory, error)

	// LogInteraction appends one episodic record. Append-only: records are
	// never mutated or deleted by the core. A store failure is reported as
	// a *PersistenceError.
	LogInteraction(ctx context.Context, memory *types.EpisodicMemory) error

	// Close releases any resources held by the store.
	Close() error
}

// SessionStore persists per-user mutable workspaces keyed by user identity.
type SessionStore interface {
	// Load returns the workspace for userID, or a fresh empty workspace
	// when none exists. Absence is never an error.
	Load(ctx context.Context, userID string) (*types.Workspace, error)

	// Save overwrites the whole workspace keyed by its UserID
	// (last-write-wins; no partial-field updates). A store failure is
	// reported as a *PersistenceError.
	Save(ctx context.Context, workspace *types.Workspace) error

	// Close releases any resources held by the store.
	Close() error
}

// PersonaMatch pairs a persona with its similarity score for one query.
type PersonaMatch struct {
	// Persona is the matched record, config included.
	Persona *types.PersonaRecord

	// Score is the cosine similarity between query and persona embedding,
	// higher is better.
	Score float64
}
