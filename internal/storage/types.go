package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// PersistenceError reports a store failure with enough context (which store,
// which operation) for the caller to decide on retry or remediation.
// Backends wrap driver errors into this type; it unwraps to the cause.
type PersistenceError struct {
	// Store names the failing store (e.g. "postgres-memory", "sqlite-session").
	Store string

	// Op names the failing operation (e.g. "LogInteraction", "Save").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err with store and operation context.
func NewPersistenceError(store, op string, err error) *PersistenceError {
	return &PersistenceError{Store: store, Op: op, Err: err}
}

// RetrievalOptions bounds a similarity search.
type RetrievalOptions struct {
	// Limit is the maximum number of results to return (default: 5, max: 50).
	Limit int
}

// Normalize applies defaults and caps to the RetrievalOptions.
func (o *RetrievalOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 5
	}
	if o.Limit > 50 {
		o.Limit = 50
	}
}
