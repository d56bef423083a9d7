// Package types defines the core data structures for the Loom context
// orchestration system. These types describe personas (operating domains),
// the two kinds of long-term memory, per-user session workspaces, and the
// ephemeral context object assembled for each conversational turn.
package types

import "time"

// PersonaRecord describes one operating domain: its identity, the semantic
// description that drives vector routing, and the free-form configuration
// (instructions, objectives, rules) injected into the prompt when the domain
// is active.
//
// Records are immutable after creation except via explicit upsert. The
// embedding dimension must equal the system-wide configured dimension.
type PersonaRecord struct {
	// ID is the globally unique domain identifier (e.g. "fiscal").
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable persona name (e.g. "ABACO").
	Name string `json:"name" yaml:"name"`

	// SemanticDescription is the text whose embedding is matched against
	// user input during domain resolution.
	SemanticDescription string `json:"semantic_description" yaml:"semantic_description"`

	// Config holds free-form persona instructions (persona text, objective,
	// golden rules, ...). Rendered into the prompt during flattening.
	Config map[string]interface{} `json:"config" yaml:"config"`

	// Embedding is the vector for SemanticDescription. Populated by the
	// seeding path; stores persist and index it.
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`
}

// EpisodicMemory is the record of one completed interaction turn.
// Episodic records are append-only: the core never mutates or deletes them.
// Retention is an external policy.
type EpisodicMemory struct {
	// ID uniquely identifies the record. Assigned by the caller (uuid) so
	// that retried commits append distinct rows per distinct call.
	ID string `json:"id"`

	// UserID identifies the user the turn belongs to.
	UserID string `json:"user_id"`

	// DomainID references the PersonaRecord that was in focus for the turn.
	DomainID string `json:"domain_id"`

	// UserInput is the raw user utterance.
	UserInput string `json:"user_input"`

	// AssistantOutput is the downstream model's response.
	AssistantOutput string `json:"assistant_output"`

	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`

	// Embedding is the vector for UserInput, used to rank this record by
	// relevance to later queries.
	Embedding []float32 `json:"embedding,omitempty"`
}

// SemanticMemory is a durable piece of domain knowledge, curated out-of-band
// and read-only from the orchestrator's perspective.
type SemanticMemory struct {
	// ID is the globally unique memory identifier.
	ID string `json:"id" yaml:"id"`

	// DomainID scopes the memory to one domain. Retrieval applies this as
	// a hard filter, never a soft signal.
	DomainID string `json:"domain_id" yaml:"domain_id"`

	// Type is a category tag (e.g. "business_rule").
	Type string `json:"type" yaml:"type"`

	// TextContent is the knowledge itself; its embedding drives retrieval.
	TextContent string `json:"text_content" yaml:"text_content"`

	// Attributes carries optional structured metadata.
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Embedding is the vector for TextContent.
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`

	// Position records insertion order within the domain. Used to break
	// similarity ties deterministically.
	Position int `json:"position,omitempty" yaml:"-"`
}

// Workspace is the per-user mutable session state persisted across turns.
// One workspace exists per user; every save is a full overwrite
// (last-write-wins). Created lazily on first interaction.
type Workspace struct {
	// UserID is the workspace key.
	UserID string `json:"user_id"`

	// CurrentFocus is the domain id active for the user's session.
	// Empty on a fresh workspace.
	CurrentFocus string `json:"current_focus"`

	// Fields holds additional continuity state carried across turns
	// (free-form; owned by whatever layer put it there).
	Fields map[string]interface{} `json:"fields,omitempty"`

	// UpdatedAt is when the workspace was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWorkspace returns an empty workspace for the given user. Used by
// session stores when no workspace exists yet; absence is never an error.
func NewWorkspace(userID string) *Workspace {
	return &Workspace{
		UserID: userID,
		Fields: make(map[string]interface{}),
	}
}

// Clone returns a deep copy of the workspace safe for independent mutation.
func (w *Workspace) Clone() *Workspace {
	clone := &Workspace{
		UserID:       w.UserID,
		CurrentFocus: w.CurrentFocus,
		UpdatedAt:    w.UpdatedAt,
		Fields:       make(map[string]interface{}, len(w.Fields)),
	}
	for k, v := range w.Fields {
		clone.Fields[k] = v
	}
	return clone
}

// ContextObject is the ephemeral aggregate built fresh for one turn. It is
// owned exclusively by the orchestrator for the duration of the turn and is
// never persisted; only its derived writes (EpisodicMemory, Workspace)
// survive the turn.
type ContextObject struct {
	// UserID is the user the turn belongs to.
	UserID string `json:"user_id"`

	// CurrentFocus is the domain resolved for this turn.
	CurrentFocus string `json:"current_focus"`

	// Persona is the matched PersonaRecord (config included).
	Persona *PersonaRecord `json:"persona"`

	// SemanticMemories are the top-K knowledge records retrieved for the
	// turn, most relevant first.
	SemanticMemories []SemanticMemory `json:"semantic_memories"`

	// EpisodicMemories are the top-K past interactions retrieved for the
	// turn, most relevant first.
	EpisodicMemories []EpisodicMemory `json:"episodic_memories"`

	// Workspace is the user's session state as loaded at the start of the
	// turn, with CurrentFocus already updated to the resolved domain.
	Workspace *Workspace `json:"workspace"`

	// GeneratedAt is when the context object was assembled.
	GeneratedAt time.Time `json:"generated_at"`
}
