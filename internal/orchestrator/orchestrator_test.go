package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chromemstore "github.com/loomctx/loom/internal/storage/chromem"
	memorystore "github.com/loomctx/loom/internal/storage/memory"
	"github.com/loomctx/loom/pkg/types"
)

const testDimension = 4

// stubEmbedder maps known inputs to fixed vectors so routing outcomes are
// fully controlled by the test.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	return nil, fmt.Errorf("stub embedder: no vector for %q", text)
}

func (s *stubEmbedder) Dimension() int { return testDimension }

// catalogAxis and fiscalAxis are orthogonal unit vectors, one per domain.
var (
	catalogAxis = []float32{1, 0, 0, 0}
	fiscalAxis  = []float32{0, 1, 0, 0}
	// ambiguous sits almost exactly between the two domains.
	ambiguous = []float32{0.715, 0.699, 0, 0}
)

type testFixture struct {
	orch     *Orchestrator
	store    *chromemstore.Store
	embedder *stubEmbedder
	events   []Event
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	store, err := chromemstore.NewStore(testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &testFixture{
		store: store,
		embedder: &stubEmbedder{vectors: map[string][]float32{
			"register notebook NB-1099":          catalogAxis,
			"check the invoice tax codes":        fiscalAxis,
			"what was the last notebook code?":   catalogAxis,
			"ok":                                 ambiguous,
			"catalog management, item codes":     catalogAxis,
			"fiscal documents, taxes, invoices":  fiscalAxis,
			"new codes follow the NB sequence":   catalogAxis,
			"validate service codes on invoices": fiscalAxis,
		}},
	}

	orch, err := New(Config{
		Personas:   store,
		Memories:   store,
		Sessions:   memorystore.NewSessionStore(),
		Embedder:   f.embedder,
		OnActivity: func(e Event) { f.events = append(f.events, e) },
	})
	require.NoError(t, err)
	f.orch = orch

	return f
}

// seedDomains installs the two test domains with one semantic memory each.
func (f *testFixture) seedDomains(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.Upsert(ctx, &types.PersonaRecord{
		ID:                  "product_catalog",
		Name:                "CATALOG",
		SemanticDescription: "catalog management, item codes",
		Config:              map[string]interface{}{"objective": "registry consistency"},
		Embedding:           catalogAxis,
	}))
	require.NoError(t, f.store.Upsert(ctx, &types.PersonaRecord{
		ID:                  "fiscal",
		Name:                "ABACO",
		SemanticDescription: "fiscal documents, taxes, invoices",
		Config:              map[string]interface{}{"objective": "tax compliance"},
		Embedding:           fiscalAxis,
	}))

	require.NoError(t, f.store.UpsertSemantic(ctx, &types.SemanticMemory{
		ID: "mem-catalog", DomainID: "product_catalog", Type: "business_rule",
		TextContent: "new codes follow the NB sequence", Embedding: catalogAxis,
	}))
	require.NoError(t, f.store.UpsertSemantic(ctx, &types.SemanticMemory{
		ID: "mem-fiscal", DomainID: "fiscal", Type: "business_rule",
		TextContent: "validate service codes on invoices", Embedding: fiscalAxis,
	}))
}

func TestGenerateContextEmptyStoreFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.GenerateContext(context.Background(), "alice", "ok")
	assert.ErrorIs(t, err, ErrNoDomainConfigured)
}

func TestGenerateContextRoutesAndRetrieves(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	obj, err := f.orch.GenerateContext(ctx, "alice", "check the invoice tax codes")
	require.NoError(t, err)

	assert.Equal(t, "fiscal", obj.CurrentFocus)
	assert.Equal(t, "ABACO", obj.Persona.Name)
	require.Len(t, obj.SemanticMemories, 1)
	assert.Equal(t, "mem-fiscal", obj.SemanticMemories[0].ID)
	assert.Empty(t, obj.EpisodicMemories)
	assert.Equal(t, "fiscal", obj.Workspace.CurrentFocus)
}

func TestAbandonedTurnLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	_, err := f.orch.GenerateContext(ctx, "alice", "check the invoice tax codes")
	require.NoError(t, err)

	// No commit happened: the next turn must see a fresh workspace and no
	// episodic history.
	obj, err := f.orch.GenerateContext(ctx, "alice", "register notebook NB-1099")
	require.NoError(t, err)
	assert.Equal(t, "product_catalog", obj.CurrentFocus)
	assert.Empty(t, obj.EpisodicMemories)
}

func TestThreeTurnScenario(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	run := func(input, answer string) *types.ContextObject {
		t.Helper()
		obj, err := f.orch.GenerateContext(ctx, "alice", input)
		require.NoError(t, err)
		require.NoError(t, f.orch.Commit(ctx, obj, input, answer))
		return obj
	}

	// Turn 1: strongly catalog.
	obj1 := run("register notebook NB-1099", "Registered as NB-1099.")
	assert.Equal(t, "product_catalog", obj1.CurrentFocus)

	// Turn 2: strongly fiscal; the workspace follows the switch.
	obj2 := run("check the invoice tax codes", "The codes are valid.")
	assert.Equal(t, "fiscal", obj2.CurrentFocus)

	// Turn 3: back to catalog. Episodic retrieval must surface turn 1 and
	// never turn 2, which belongs to the fiscal domain.
	obj3, err := f.orch.GenerateContext(ctx, "alice", "what was the last notebook code?")
	require.NoError(t, err)
	assert.Equal(t, "product_catalog", obj3.CurrentFocus)
	require.Len(t, obj3.EpisodicMemories, 1)
	assert.Equal(t, "register notebook NB-1099", obj3.EpisodicMemories[0].UserInput)
	assert.Equal(t, "Registered as NB-1099.", obj3.EpisodicMemories[0].AssistantOutput)
}

func TestMarginStabilityKeepsFocusOnAmbiguousInput(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	obj, err := f.orch.GenerateContext(ctx, "alice", "check the invoice tax codes")
	require.NoError(t, err)
	require.NoError(t, f.orch.Commit(ctx, obj, "check the invoice tax codes", "Done."))

	// "ok" scores marginally higher for product_catalog, but not by enough
	// to justify bouncing the session out of the fiscal domain.
	obj, err = f.orch.GenerateContext(ctx, "alice", "ok")
	require.NoError(t, err)
	assert.Equal(t, "fiscal", obj.CurrentFocus)
}

func TestCommitAppendsPerCallAndOverwritesWorkspace(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	obj, err := f.orch.GenerateContext(ctx, "alice", "register notebook NB-1099")
	require.NoError(t, err)

	// A retried commit appends a second episodic record (append-only, not
	// deduped) and leaves the workspace in the same final state.
	require.NoError(t, f.orch.Commit(ctx, obj, "register notebook NB-1099", "Registered."))
	require.NoError(t, f.orch.Commit(ctx, obj, "register notebook NB-1099", "Registered."))

	next, err := f.orch.GenerateContext(ctx, "alice", "what was the last notebook code?")
	require.NoError(t, err)
	assert.Len(t, next.EpisodicMemories, 2)
	assert.Equal(t, "product_catalog", next.Workspace.CurrentFocus)
}

func TestGenerateContextValidatesInput(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	_, err := f.orch.GenerateContext(ctx, "", "hello")
	assert.Error(t, err)

	_, err = f.orch.GenerateContext(ctx, "alice", "   ")
	assert.Error(t, err)
}

func TestActivityEventsEmitted(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	obj, err := f.orch.GenerateContext(ctx, "alice", "register notebook NB-1099")
	require.NoError(t, err)
	require.NoError(t, f.orch.Commit(ctx, obj, "register notebook NB-1099", "Registered."))

	require.Len(t, f.events, 2)
	assert.Equal(t, EventContextGenerated, f.events[0].Kind)
	assert.Equal(t, EventTurnCommitted, f.events[1].Kind)
	assert.Equal(t, "product_catalog", f.events[0].Domain)
}

func TestRenderPromptSubstitutesContext(t *testing.T) {
	f := newFixture(t)
	f.seedDomains(t)
	ctx := context.Background()

	obj, err := f.orch.GenerateContext(ctx, "alice", "check the invoice tax codes")
	require.NoError(t, err)

	prompt := f.orch.RenderPrompt(obj, "check the invoice tax codes")
	assert.NotContains(t, prompt, PlaceholderToken)
	assert.Contains(t, prompt, "domain: fiscal")
	assert.Contains(t, prompt, "check the invoice tax codes")
}
