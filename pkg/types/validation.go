package types

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord indicates that a record failed structural validation.
var ErrInvalidRecord = errors.New("invalid record")

// Validate checks the structural invariants of a PersonaRecord.
// The dimension argument is the system-wide embedding dimension; pass 0 to
// skip the dimension check (e.g. before the embedding has been computed).
func (p *PersonaRecord) Validate(dimension int) error {
	if p.ID == "" {
		return fmt.Errorf("%w: persona id is required", ErrInvalidRecord)
	}
	if p.SemanticDescription == "" {
		return fmt.Errorf("%w: persona %q has no semantic description", ErrInvalidRecord, p.ID)
	}
	if dimension > 0 && len(p.Embedding) > 0 && len(p.Embedding) != dimension {
		return fmt.Errorf("%w: persona %q embedding has dimension %d, want %d",
			ErrInvalidRecord, p.ID, len(p.Embedding), dimension)
	}
	return nil
}

// Validate checks the structural invariants of an EpisodicMemory.
func (e *EpisodicMemory) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: episodic memory id is required", ErrInvalidRecord)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: episodic memory user id is required", ErrInvalidRecord)
	}
	if e.DomainID == "" {
		return fmt.Errorf("%w: episodic memory domain id is required", ErrInvalidRecord)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: episodic memory timestamp is required", ErrInvalidRecord)
	}
	return nil
}

// Validate checks the structural invariants of a SemanticMemory.
func (m *SemanticMemory) Validate(dimension int) error {
	if m.ID == "" {
		return fmt.Errorf("%w: semantic memory id is required", ErrInvalidRecord)
	}
	if m.DomainID == "" {
		return fmt.Errorf("%w: semantic memory %q has no domain id", ErrInvalidRecord, m.ID)
	}
	if m.TextContent == "" {
		return fmt.Errorf("%w: semantic memory %q has no text content", ErrInvalidRecord, m.ID)
	}
	if dimension > 0 && len(m.Embedding) > 0 && len(m.Embedding) != dimension {
		return fmt.Errorf("%w: semantic memory %q embedding has dimension %d, want %d",
			ErrInvalidRecord, m.ID, len(m.Embedding), dimension)
	}
	return nil
}
