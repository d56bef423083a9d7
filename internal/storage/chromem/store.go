// Package chromem provides an embedded, pure-Go implementation of the
// persona and memory store contracts on top of chromem-go. It needs no
// external services, which makes it the development and test backend; the
// PostgreSQL backend is the production one.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

const (
	personasCollection = "personas"
	semanticCollection = "semantic_memories"
	episodicCollection = "episodic_memories"
)

// Store implements storage.PersonaStore and storage.MemoryStore using three
// chromem collections. Records are serialized to JSON in the document
// content; scope fields (domain_id, user_id) are mirrored into metadata so
// retrieval can apply them as hard filters.
type Store struct {
	db       *chromem.DB
	personas *chromem.Collection
	semantic *chromem.Collection
	episodic *chromem.Collection

	dimension int

	mu sync.RWMutex
	// personaRecords keeps the authoritative persona data (config maps do
	// not survive a metadata round-trip) keyed by domain id.
	personaRecords map[string]*types.PersonaRecord
	// nextPosition assigns insertion order to semantic memories.
	nextPosition int
}

var _ storage.PersonaStore = (*Store)(nil)
var _ storage.MemoryStore = (*Store)(nil)

// NewStore creates an in-memory store for the given embedding dimension.
// Data does not survive the process; use the postgres backend for durable
// deployments.
func NewStore(dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("chromem: invalid embedding dimension %d", dimension)
	}

	s := &Store{
		db:             chromem.NewDB(),
		dimension:      dimension,
		personaRecords: make(map[string]*types.PersonaRecord),
		nextPosition:   1,
	}

	// No embedding function: callers supply vectors, the default distance
	// is cosine.
	var err error
	if s.personas, err = s.db.GetOrCreateCollection(personasCollection, nil, nil); err != nil {
		return nil, fmt.Errorf("chromem: create personas collection: %w", err)
	}
	if s.semantic, err = s.db.GetOrCreateCollection(semanticCollection, nil, nil); err != nil {
		return nil, fmt.Errorf("chromem: create semantic collection: %w", err)
	}
	if s.episodic, err = s.db.GetOrCreateCollection(episodicCollection, nil, nil); err != nil {
		return nil, fmt.Errorf("chromem: create episodic collection: %w", err)
	}

	return s, nil
}

// Close releases nothing; chromem has no open handles to free.
func (s *Store) Close() error {
	return nil
}

// --- PersonaStore ---

// Upsert creates or updates a persona keyed by ID.
func (s *Store) Upsert(ctx context.Context, persona *types.PersonaRecord) error {
	if persona == nil {
		return storage.ErrInvalidInput
	}
	if err := persona.Validate(s.dimension); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if len(persona.Embedding) != s.dimension {
		return fmt.Errorf("%w: persona %q embedding has dimension %d, want %d",
			storage.ErrInvalidInput, persona.ID, len(persona.Embedding), s.dimension)
	}

	content, err := json.Marshal(persona)
	if err != nil {
		return fmt.Errorf("chromem: marshal persona: %w", err)
	}

	doc := chromem.Document{
		ID:        persona.ID,
		Content:   string(content),
		Embedding: persona.Embedding,
		Metadata:  map[string]string{"name": persona.Name},
	}
	if err := s.personas.AddDocument(ctx, doc); err != nil {
		return storage.NewPersistenceError("chromem-persona", "Upsert", err)
	}

	s.mu.Lock()
	clone := *persona
	s.personaRecords[persona.ID] = &clone
	s.mu.Unlock()

	return nil
}

// Get retrieves a persona by domain id.
func (s *Store) Get(ctx context.Context, id string) (*types.PersonaRecord, error) {
	s.mu.RLock()
	record, ok := s.personaRecords[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: persona %q", storage.ErrNotFound, id)
	}

	clone := *record
	return &clone, nil
}

// Match ranks all personas by cosine similarity to the query vector.
func (s *Store) Match(ctx context.Context, query []float32, limit int) ([]storage.PersonaMatch, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			storage.ErrInvalidInput, len(query), s.dimension)
	}
	if limit < 1 {
		limit = 10
	}

	count := s.personas.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem rejects nResults greater than the collection size.
	if limit > count {
		limit = count
	}

	results, err := s.personas.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, storage.NewPersistenceError("chromem-persona", "Match", err)
	}

	matches := make([]storage.PersonaMatch, 0, len(results))
	for _, res := range results {
		var record types.PersonaRecord
		if err := json.Unmarshal([]byte(res.Content), &record); err != nil {
			return nil, fmt.Errorf("chromem: unmarshal persona %q: %w", res.ID, err)
		}
		persona := record
		matches = append(matches, storage.PersonaMatch{Persona: &persona, Score: float64(res.Similarity)})
	}

	return matches, nil
}

// List returns all personas.
func (s *Store) List(ctx context.Context) ([]types.PersonaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	personas := make([]types.PersonaRecord, 0, len(s.personaRecords))
	for _, record := range s.personaRecords {
		personas = append(personas, *record)
	}
	sort.Slice(personas, func(i, j int) bool { return personas[i].ID < personas[j].ID })

	return personas, nil
}

// --- MemoryStore ---

// UpsertSemantic creates or updates a semantic memory keyed by ID. First
// insert assigns the insertion-order position used for tie-breaks.
func (s *Store) UpsertSemantic(ctx context.Context, memory *types.SemanticMemory) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if err := memory.Validate(s.dimension); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if len(memory.Embedding) != s.dimension {
		return fmt.Errorf("%w: semantic memory %q embedding has dimension %d, want %d",
			storage.ErrInvalidInput, memory.ID, len(memory.Embedding), s.dimension)
	}

	record := *memory
	if record.Position == 0 {
		s.mu.Lock()
		record.Position = s.nextPosition
		s.nextPosition++
		s.mu.Unlock()
	}

	content, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("chromem: marshal semantic memory: %w", err)
	}

	doc := chromem.Document{
		ID:        record.ID,
		Content:   string(content),
		Embedding: record.Embedding,
		Metadata: map[string]string{
			"domain_id": record.DomainID,
			"position":  strconv.Itoa(record.Position),
		},
	}
	if err := s.semantic.AddDocument(ctx, doc); err != nil {
		return storage.NewPersistenceError("chromem-memory", "UpsertSemantic", err)
	}

	return nil
}

// SearchSemantic returns domain-scoped semantic memories ranked by cosine
// similarity, ties broken by insertion order.
func (s *Store) SearchSemantic(ctx context.Context, domainID string, query []float32, opts storage.RetrievalOptions) ([]types.SemanticMemory, error) {
	opts.Normalize()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			storage.ErrInvalidInput, len(query), s.dimension)
	}

	results, err := s.queryScoped(ctx, s.semantic, query, opts.Limit,
		map[string]string{"domain_id": domainID})
	if err != nil {
		return nil, storage.NewPersistenceError("chromem-memory", "SearchSemantic", err)
	}

	memories := make([]types.SemanticMemory, 0, len(results))
	for _, res := range results {
		var m types.SemanticMemory
		if err := json.Unmarshal([]byte(res.Content), &m); err != nil {
			return nil, fmt.Errorf("chromem: unmarshal semantic memory %q: %w", res.ID, err)
		}
		memories = append(memories, m)
	}

	// Stable re-sort: similarity descending, then insertion order.
	sims := similarityByID(results)
	sort.SliceStable(memories, func(i, j int) bool {
		si, sj := sims[memories[i].ID], sims[memories[j].ID]
		if si != sj {
			return si > sj
		}
		return memories[i].Position < memories[j].Position
	})

	if len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}
	return memories, nil
}

// SearchEpisodic returns user- and domain-scoped episodic memories ranked by
// cosine similarity, ties broken by most-recent timestamp.
func (s *Store) SearchEpisodic(ctx context.Context, userID, domainID string, query []float32, opts storage.RetrievalOptions) ([]types.EpisodicMemory, error) {
	opts.Normalize()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d",
			storage.ErrInvalidInput, len(query), s.dimension)
	}

	results, err := s.queryScoped(ctx, s.episodic, query, opts.Limit,
		map[string]string{"domain_id": domainID, "user_id": userID})
	if err != nil {
		return nil, storage.NewPersistenceError("chromem-memory", "SearchEpisodic", err)
	}

	memories := make([]types.EpisodicMemory, 0, len(results))
	for _, res := range results {
		var m types.EpisodicMemory
		if err := json.Unmarshal([]byte(res.Content), &m); err != nil {
			return nil, fmt.Errorf("chromem: unmarshal episodic memory %q: %w", res.ID, err)
		}
		memories = append(memories, m)
	}

	sims := similarityByID(results)
	sort.SliceStable(memories, func(i, j int) bool {
		si, sj := sims[memories[i].ID], sims[memories[j].ID]
		if si != sj {
			return si > sj
		}
		return memories[i].Timestamp.After(memories[j].Timestamp)
	})

	if len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}
	return memories, nil
}

// LogInteraction appends one episodic record.
func (s *Store) LogInteraction(ctx context.Context, memory *types.EpisodicMemory) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if len(memory.Embedding) != s.dimension {
		return fmt.Errorf("%w: episodic memory %q embedding has dimension %d, want %d",
			storage.ErrInvalidInput, memory.ID, len(memory.Embedding), s.dimension)
	}

	content, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("chromem: marshal episodic memory: %w", err)
	}

	doc := chromem.Document{
		ID:        memory.ID,
		Content:   string(content),
		Embedding: memory.Embedding,
		Metadata: map[string]string{
			"domain_id": memory.DomainID,
			"user_id":   memory.UserID,
		},
	}
	if err := s.episodic.AddDocument(ctx, doc); err != nil {
		return storage.NewPersistenceError("chromem-memory", "LogInteraction", err)
	}

	return nil
}

// queryScoped runs a filtered similarity query, over-fetching so that the
// caller's deterministic tie-break sort has the full tie group to work with.
func (s *Store) queryScoped(ctx context.Context, col *chromem.Collection, query []float32, limit int, where map[string]string) ([]chromem.Result, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	fetch := limit * 4
	if fetch > count {
		fetch = count
	}
	if fetch < 1 {
		fetch = 1
	}

	return col.QueryEmbedding(ctx, query, fetch, where, nil)
}

// similarityByID indexes query similarities by document id.
func similarityByID(results []chromem.Result) map[string]float32 {
	sims := make(map[string]float32, len(results))
	for _, res := range results {
		sims[res.ID] = res.Similarity
	}
	return sims
}
