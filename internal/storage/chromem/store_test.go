package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

const testDimension = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// axis returns a unit vector along the i-th axis.
func axis(i int) []float32 {
	vec := make([]float32, testDimension)
	vec[i] = 1
	return vec
}

func seedPersonas(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &types.PersonaRecord{
		ID:                  "fiscal",
		Name:                "ABACO",
		SemanticDescription: "fiscal analysis",
		Config:              map[string]interface{}{"objective": "tax compliance"},
		Embedding:           axis(0),
	}))
	require.NoError(t, store.Upsert(ctx, &types.PersonaRecord{
		ID:                  "product_catalog",
		Name:                "CATALOG",
		SemanticDescription: "catalog management",
		Config:              map[string]interface{}{"objective": "registry consistency"},
		Embedding:           axis(1),
	}))
}

func TestPersonaUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	seedPersonas(t, store)
	ctx := context.Background()

	got, err := store.Get(ctx, "fiscal")
	require.NoError(t, err)
	assert.Equal(t, "ABACO", got.Name)
	assert.Equal(t, "tax compliance", got.Config["objective"])

	_, err = store.Get(ctx, "shipping")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Upsert with the same id replaces.
	require.NoError(t, store.Upsert(ctx, &types.PersonaRecord{
		ID:                  "fiscal",
		Name:                "ABACO v2",
		SemanticDescription: "fiscal analysis",
		Embedding:           axis(0),
	}))
	got, err = store.Get(ctx, "fiscal")
	require.NoError(t, err)
	assert.Equal(t, "ABACO v2", got.Name)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPersonaMatchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	seedPersonas(t, store)

	matches, err := store.Match(context.Background(), axis(1), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "product_catalog", matches[0].Persona.ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestPersonaMatchEmptyStore(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.Match(context.Background(), axis(0), 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPersonaUpsertRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), &types.PersonaRecord{
		ID:                  "fiscal",
		SemanticDescription: "fiscal analysis",
		Embedding:           []float32{1, 0},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSemanticSearchScopedToDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSemantic(ctx, &types.SemanticMemory{
		ID: "mem-fiscal", DomainID: "fiscal", Type: "business_rule",
		TextContent: "validate the service code", Embedding: axis(0),
	}))
	require.NoError(t, store.UpsertSemantic(ctx, &types.SemanticMemory{
		ID: "mem-catalog", DomainID: "product_catalog", Type: "business_rule",
		TextContent: "codes follow the NB sequence", Embedding: axis(0),
	}))

	hits, err := store.SearchSemantic(ctx, "fiscal", axis(0), storage.RetrievalOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "mem-fiscal", hits[0].ID)

	// Unknown domain returns empty, never an error.
	hits, err = store.SearchSemantic(ctx, "shipping", axis(0), storage.RetrievalOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSemanticSearchBreaksTiesByInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical embeddings: similarity ties across all three.
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.UpsertSemantic(ctx, &types.SemanticMemory{
			ID: id, DomainID: "fiscal", Type: "business_rule",
			TextContent: "rule " + id, Embedding: axis(2),
		}))
	}

	hits, err := store.SearchSemantic(ctx, "fiscal", axis(2), storage.RetrievalOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "first", hits[0].ID)
	assert.Equal(t, "second", hits[1].ID)
}

func TestEpisodicSearchScopedToUserAndDomain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	log := func(id, userID, domainID string, ts time.Time) {
		t.Helper()
		require.NoError(t, store.LogInteraction(ctx, &types.EpisodicMemory{
			ID: id, UserID: userID, DomainID: domainID,
			UserInput: "input " + id, AssistantOutput: "output " + id,
			Timestamp: ts, Embedding: axis(3),
		}))
	}

	log("t1", "alice", "fiscal", now.Add(-2*time.Hour))
	log("t2", "alice", "product_catalog", now.Add(-time.Hour))
	log("t3", "bob", "fiscal", now)

	hits, err := store.SearchEpisodic(ctx, "alice", "fiscal", axis(3), storage.RetrievalOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "t1", hits[0].ID)
}

func TestEpisodicSearchBreaksTiesByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"old", "newer", "newest"} {
		require.NoError(t, store.LogInteraction(ctx, &types.EpisodicMemory{
			ID: id, UserID: "alice", DomainID: "fiscal",
			UserInput: "q", AssistantOutput: "a",
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Embedding: axis(3),
		}))
	}

	hits, err := store.SearchEpisodic(ctx, "alice", "fiscal", axis(3), storage.RetrievalOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "newest", hits[0].ID)
	assert.Equal(t, "newer", hits[1].ID)
}

func TestLogInteractionAppendsDistinctRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.LogInteraction(ctx, &types.EpisodicMemory{
			ID: id, UserID: "alice", DomainID: "fiscal",
			UserInput: "same input", AssistantOutput: "same output",
			Timestamp: time.Now().UTC(), Embedding: axis(0),
		}))
	}

	hits, err := store.SearchEpisodic(ctx, "alice", "fiscal", axis(0), storage.RetrievalOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
