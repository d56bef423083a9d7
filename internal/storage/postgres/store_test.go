package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

const testDimension = 8

// newTestStore connects to the database named by LOOM_TEST_POSTGRES_DSN.
// Tests are skipped when the variable is unset so the suite runs without a
// live Postgres. The target database must have the pgvector extension
// available.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("LOOM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOOM_TEST_POSTGRES_DSN not set; skipping postgres integration tests")
	}

	store, err := NewStore(dsn, testDimension)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func axis(i int) []float32 {
	vec := make([]float32, testDimension)
	vec[i] = 1
	return vec
}

func TestPersonaRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := "test-persona-" + uuid.NewString()
	persona := &types.PersonaRecord{
		ID:                  id,
		Name:                "TEST",
		SemanticDescription: "integration test persona",
		Config:              map[string]interface{}{"objective": "round trip"},
		Embedding:           axis(0),
	}
	if err := store.Upsert(ctx, persona); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "TEST" || got.Config["objective"] != "round trip" {
		t.Errorf("unexpected persona: %+v", got)
	}

	matches, err := store.Match(ctx, axis(0), 50)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	found := false
	for _, m := range matches {
		if m.Persona.ID == id {
			found = true
			if m.Score < 0.99 {
				t.Errorf("score for identical vector = %f, want ~1", m.Score)
			}
		}
	}
	if !found {
		t.Error("upserted persona missing from Match results")
	}
}

func TestGetMissingPersona(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-persona-"+uuid.NewString())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestEpisodicScopingAcrossDomains(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	userID := "test-user-" + uuid.NewString()
	domainA := "test-domain-a-" + uuid.NewString()
	domainB := "test-domain-b-" + uuid.NewString()

	log := func(domainID string) {
		t.Helper()
		err := store.LogInteraction(ctx, &types.EpisodicMemory{
			ID:              uuid.NewString(),
			UserID:          userID,
			DomainID:        domainID,
			UserInput:       "input for " + domainID,
			AssistantOutput: "output",
			Timestamp:       time.Now().UTC(),
			Embedding:       axis(1),
		})
		if err != nil {
			t.Fatalf("LogInteraction failed: %v", err)
		}
	}

	log(domainA)
	log(domainB)

	hits, err := store.SearchEpisodic(ctx, userID, domainA, axis(1), storage.RetrievalOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchEpisodic failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].DomainID != domainA {
		t.Errorf("hit from domain %q leaked into %q scope", hits[0].DomainID, domainA)
	}
}

func TestSemanticUpsertKeepsPosition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	domainID := "test-domain-" + uuid.NewString()
	mem := &types.SemanticMemory{
		ID:          "test-mem-" + uuid.NewString(),
		DomainID:    domainID,
		Type:        "business_rule",
		TextContent: "original",
		Embedding:   axis(2),
	}
	if err := store.UpsertSemantic(ctx, mem); err != nil {
		t.Fatalf("UpsertSemantic failed: %v", err)
	}

	first, err := store.SearchSemantic(ctx, domainID, axis(2), storage.RetrievalOptions{Limit: 1})
	if err != nil || len(first) != 1 {
		t.Fatalf("SearchSemantic: hits=%d err=%v", len(first), err)
	}

	mem.TextContent = "updated"
	if err := store.UpsertSemantic(ctx, mem); err != nil {
		t.Fatalf("second UpsertSemantic failed: %v", err)
	}

	second, err := store.SearchSemantic(ctx, domainID, axis(2), storage.RetrievalOptions{Limit: 1})
	if err != nil || len(second) != 1 {
		t.Fatalf("SearchSemantic: hits=%d err=%v", len(second), err)
	}
	if second[0].TextContent != "updated" {
		t.Errorf("TextContent = %q, want %q", second[0].TextContent, "updated")
	}
	if second[0].Position != first[0].Position {
		t.Errorf("position changed on update: %d -> %d", first[0].Position, second[0].Position)
	}
}
