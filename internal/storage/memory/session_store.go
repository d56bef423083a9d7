// Package memory provides an in-process session store for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

// SessionStore implements storage.SessionStore with a mutex-guarded map.
// Workspaces are deep-copied at the boundary so callers cannot mutate
// stored state.
type SessionStore struct {
	mu         sync.RWMutex
	workspaces map[string]*types.Workspace
}

var _ storage.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		workspaces: make(map[string]*types.Workspace),
	}
}

// Load returns the workspace for a user, or a fresh default one if the user
// has no stored state.
func (s *SessionStore) Load(ctx context.Context, userID string) (*types.Workspace, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	s.mu.RLock()
	ws, ok := s.workspaces[userID]
	s.mu.RUnlock()

	if !ok {
		return types.NewWorkspace(userID), nil
	}

	return ws.Clone(), nil
}

// Save stores the workspace, replacing any previous state for the user.
func (s *SessionStore) Save(ctx context.Context, workspace *types.Workspace) error {
	if workspace == nil || workspace.UserID == "" {
		return fmt.Errorf("%w: workspace with user ID is required", storage.ErrInvalidInput)
	}

	workspace.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.workspaces[workspace.UserID] = workspace.Clone()
	s.mu.Unlock()

	return nil
}

// Close is a no-op; nothing is held open.
func (s *SessionStore) Close() error {
	return nil
}
