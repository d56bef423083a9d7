package orchestrator

import (
	"context"
	"fmt"

	"github.com/loomctx/loom/internal/storage"
)

// maxPersonaCandidates caps the candidate list requested from the persona
// store. Deployments have a handful of domains, so this is effectively "all".
const maxPersonaCandidates = 32

// DomainResolver decides which domain a turn belongs to. Routing is a soft
// classifier, so the policy is pluggable: margin and tie-break rules can be
// swapped without touching the orchestrator.
type DomainResolver interface {
	// Resolve returns the persona for the query vector, given the domain in
	// focus on the previous turn ("" when none). Implementations must be
	// pure reads; resolution runs on every turn.
	Resolve(ctx context.Context, query []float32, priorFocus string) (*storage.PersonaMatch, error)
}

// MarginResolver picks the highest scoring persona, but retains the prior
// focus when the top match does not beat the prior domain's score by at
// least the configured margin. This keeps short, ambiguous utterances (an
// acknowledgment, a "yes") from bouncing the session between domains.
type MarginResolver struct {
	personas storage.PersonaStore
	margin   float64
}

var _ DomainResolver = (*MarginResolver)(nil)

// NewMarginResolver creates a resolver over the given persona store.
// A zero margin disables stability entirely; the top match always wins.
func NewMarginResolver(personas storage.PersonaStore, margin float64) (*MarginResolver, error) {
	if personas == nil {
		return nil, fmt.Errorf("%w: persona store is required", ErrInvalidConfig)
	}
	if margin < 0 {
		return nil, fmt.Errorf("%w: similarity margin must be >= 0, got %g", ErrInvalidConfig, margin)
	}
	return &MarginResolver{personas: personas, margin: margin}, nil
}

// Resolve implements DomainResolver.
func (r *MarginResolver) Resolve(ctx context.Context, query []float32, priorFocus string) (*storage.PersonaMatch, error) {
	matches, err := r.personas.Match(ctx, query, maxPersonaCandidates)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: persona match: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrNoDomainConfigured
	}

	top := matches[0]
	if priorFocus == "" || top.Persona.ID == priorFocus {
		return &top, nil
	}

	for i := range matches {
		if matches[i].Persona.ID != priorFocus {
			continue
		}
		// The top match must beat the prior domain by the full margin to
		// force a switch.
		if top.Score-matches[i].Score < r.margin {
			return &matches[i], nil
		}
		break
	}

	return &top, nil
}
