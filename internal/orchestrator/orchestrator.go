// Package orchestrator assembles one context object per conversational turn:
// it routes the user's input to an operating domain, retrieves domain-scoped
// semantic and episodic memories, merges the user's session workspace, and
// flattens everything into a prompt block for the downstream model call.
//
// The turn protocol is two-phase. GenerateContext performs all reads and
// returns the context object; after the caller has obtained the model's
// response, Commit writes the episodic record and the updated workspace.
// Nothing is mutated between the two calls, so an abandoned turn leaves no
// trace and a retried commit is safe.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomctx/loom/internal/embedding"
	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

// defaultSimilarityMargin is the score lead a new top domain needs over the
// prior focus before a switch happens. Tuned against normalized cosine
// scores in [0,1].
const defaultSimilarityMargin = 0.05

// Event describes one observable orchestrator action, published to the
// activity callback when one is configured.
type Event struct {
	Kind   string    `json:"kind"`
	UserID string    `json:"user_id"`
	Domain string    `json:"domain"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Event kinds.
const (
	EventContextGenerated = "context_generated"
	EventTurnCommitted    = "turn_committed"
)

// Config wires the orchestrator's collaborators. Personas, Memories,
// Sessions, and Embedder are required; everything else has a default.
type Config struct {
	Personas storage.PersonaStore
	Memories storage.MemoryStore
	Sessions storage.SessionStore
	Embedder embedding.Embedder

	// Resolver overrides the routing policy. Defaults to a MarginResolver
	// over Personas with SimilarityMargin.
	Resolver DomainResolver

	// SimilarityMargin is the stability margin for the default resolver.
	// Zero means "use the default"; routing with no margin at all requires
	// a custom Resolver.
	SimilarityMargin float64

	// TopKSemantic and TopKEpisodic cap each retrieval stream. Zero means
	// the storage default.
	TopKSemantic int
	TopKEpisodic int

	// Template is the prompt template for RenderPrompt. Defaults to
	// DefaultPromptTemplate.
	Template *PromptTemplate

	// Logger receives warning-level messages (commit-phase store failures).
	// Defaults to the standard logger.
	Logger *log.Logger

	// OnActivity, when set, is invoked synchronously after each completed
	// phase. Keep it fast; hand off to a channel for anything slow.
	OnActivity func(Event)
}

// Orchestrator runs the per-turn context pipeline. Safe for concurrent use;
// turns for the same user are serialized internally.
type Orchestrator struct {
	personas storage.PersonaStore
	memories storage.MemoryStore
	sessions storage.SessionStore
	embedder embedding.Embedder
	resolver DomainResolver

	semanticOpts storage.RetrievalOptions
	episodicOpts storage.RetrievalOptions

	template   *PromptTemplate
	logger     *log.Logger
	onActivity func(Event)

	// userLocks serializes turns per user id (value type *sync.Mutex).
	userLocks sync.Map
}

// New validates the configuration and builds an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Personas == nil {
		return nil, fmt.Errorf("%w: persona store is required", ErrInvalidConfig)
	}
	if cfg.Memories == nil {
		return nil, fmt.Errorf("%w: memory store is required", ErrInvalidConfig)
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("%w: session store is required", ErrInvalidConfig)
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}

	resolver := cfg.Resolver
	if resolver == nil {
		margin := cfg.SimilarityMargin
		if margin == 0 {
			margin = defaultSimilarityMargin
		}
		var err error
		resolver, err = NewMarginResolver(cfg.Personas, margin)
		if err != nil {
			return nil, err
		}
	}

	template := cfg.Template
	if template == nil {
		var err error
		template, err = NewPromptTemplate(DefaultPromptTemplate)
		if err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	semanticOpts := storage.RetrievalOptions{Limit: cfg.TopKSemantic}
	semanticOpts.Normalize()
	episodicOpts := storage.RetrievalOptions{Limit: cfg.TopKEpisodic}
	episodicOpts.Normalize()

	return &Orchestrator{
		personas:     cfg.Personas,
		memories:     cfg.Memories,
		sessions:     cfg.Sessions,
		embedder:     cfg.Embedder,
		resolver:     resolver,
		semanticOpts: semanticOpts,
		episodicOpts: episodicOpts,
		template:     template,
		logger:       logger,
		onActivity:   cfg.OnActivity,
	}, nil
}

// GenerateContext runs the read phase of a turn: load workspace, resolve the
// domain, retrieve both memory streams in parallel, and assemble the context
// object. Any store failure aborts the turn; no partial context is returned.
func (o *Orchestrator) GenerateContext(ctx context.Context, userID, userInput string) (*types.ContextObject, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(userInput) == "" {
		return nil, fmt.Errorf("%w: user input is required", storage.ErrInvalidInput)
	}

	mu := o.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	workspace, err := o.sessions.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load workspace: %w", err)
	}

	query, err := o.embedder.Embed(ctx, userInput)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: embed input: %w", err)
	}

	match, err := o.resolver.Resolve(ctx, query, workspace.CurrentFocus)
	if err != nil {
		return nil, err
	}
	domainID := match.Persona.ID

	var (
		wg       sync.WaitGroup
		semantic []types.SemanticMemory
		episodic []types.EpisodicMemory
		semErr   error
		epiErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = o.memories.SearchSemantic(ctx, domainID, query, o.semanticOpts)
	}()
	go func() {
		defer wg.Done()
		episodic, epiErr = o.memories.SearchEpisodic(ctx, userID, domainID, query, o.episodicOpts)
	}()
	wg.Wait()

	if semErr != nil {
		return nil, fmt.Errorf("orchestrator: semantic retrieval: %w", semErr)
	}
	if epiErr != nil {
		return nil, fmt.Errorf("orchestrator: episodic retrieval: %w", epiErr)
	}

	// Workspace fields not owned by the domain switch carry forward as-is.
	workspace.CurrentFocus = domainID

	obj := &types.ContextObject{
		UserID:           userID,
		CurrentFocus:     domainID,
		Persona:          match.Persona,
		SemanticMemories: semantic,
		EpisodicMemories: episodic,
		Workspace:        workspace,
		GeneratedAt:      time.Now().UTC(),
	}

	o.emit(Event{
		Kind:   EventContextGenerated,
		UserID: userID,
		Domain: domainID,
		Detail: fmt.Sprintf("semantic=%d episodic=%d", len(semantic), len(episodic)),
		At:     obj.GeneratedAt,
	})

	return obj, nil
}

// RenderPrompt flattens the context object together with the user input and
// substitutes the result into the configured prompt template.
func (o *Orchestrator) RenderPrompt(obj *types.ContextObject, userInput string) string {
	return o.template.Render(FlattenContext(obj, userInput))
}

// Commit runs the write phase of a turn: append the episodic record and
// overwrite the workspace. Both writes are attempted even when one fails;
// failures are joined and returned for the caller to remediate out-of-band
// (the user-visible response has already been delivered, so a commit error
// is a warning, not a turn failure). Each call appends a distinct episodic
// record; the workspace write is last-write-wins, so retrying is safe.
func (o *Orchestrator) Commit(ctx context.Context, obj *types.ContextObject, userInput, assistantOutput string) error {
	if obj == nil || obj.UserID == "" {
		return fmt.Errorf("%w: context object with user ID is required", storage.ErrInvalidInput)
	}

	mu := o.lockFor(obj.UserID)
	mu.Lock()
	defer mu.Unlock()

	var logErr, saveErr error

	vector, embedErr := o.embedder.Embed(ctx, userInput)
	if embedErr != nil {
		logErr = fmt.Errorf("orchestrator: embed interaction: %w", embedErr)
	} else {
		record := &types.EpisodicMemory{
			ID:              uuid.NewString(),
			UserID:          obj.UserID,
			DomainID:        obj.CurrentFocus,
			UserInput:       userInput,
			AssistantOutput: assistantOutput,
			Timestamp:       time.Now().UTC(),
			Embedding:       vector,
		}
		if err := o.memories.LogInteraction(ctx, record); err != nil {
			logErr = fmt.Errorf("orchestrator: log interaction: %w", err)
		}
	}

	if err := o.sessions.Save(ctx, obj.Workspace); err != nil {
		saveErr = fmt.Errorf("orchestrator: save workspace: %w", err)
	}

	if logErr != nil {
		o.logger.Printf("WARN: commit for user %s: %v", obj.UserID, logErr)
	}
	if saveErr != nil {
		o.logger.Printf("WARN: commit for user %s: %v", obj.UserID, saveErr)
	}
	if logErr != nil || saveErr != nil {
		return errors.Join(logErr, saveErr)
	}

	o.emit(Event{
		Kind:   EventTurnCommitted,
		UserID: obj.UserID,
		Domain: obj.CurrentFocus,
		At:     time.Now().UTC(),
	})

	return nil
}

// lockFor returns the per-user mutex, creating it on first use.
func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	actual, _ := o.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (o *Orchestrator) emit(event Event) {
	if o.onActivity != nil {
		o.onActivity(event)
	}
}
