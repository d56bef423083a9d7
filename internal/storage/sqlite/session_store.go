// Package sqlite persists per-user session workspaces in a local SQLite
// database. It is the durable session backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/loomctx/loom/internal/storage"
	"github.com/loomctx/loom/pkg/types"
)

// schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
    user_id    TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SessionStore implements storage.SessionStore using SQLite. Workspaces are
// stored as one JSON payload per user.
type SessionStore struct {
	db *sql.DB
}

var _ storage.SessionStore = (*SessionStore)(nil)

// NewSessionStore opens a SQLite session store with WAL self-healing. If the
// initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func NewSessionStore(dsn string) (*SessionStore, error) {
	store, err := openSessionStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openSessionStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// openSessionStore opens a SQLite database, configures WAL mode, and creates
// the schema.
func openSessionStore(dsn string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Connections live for the lifetime of the store.

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout so that callers wait instead of getting an immediate
	// SQLITE_BUSY error when the connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Load returns the workspace for a user. A user with no persisted workspace
// gets a fresh default one; absence is not an error.
func (s *SessionStore) Load(ctx context.Context, userID string) (*types.Workspace, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM workspaces WHERE user_id = ?`, userID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.NewWorkspace(userID), nil
	}
	if err != nil {
		return nil, storage.NewPersistenceError("sqlite-session", "Load", err)
	}

	var ws types.Workspace
	if err := json.Unmarshal([]byte(payload), &ws); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal workspace for %q: %w", userID, err)
	}

	// The row key is authoritative over whatever the payload claims.
	ws.UserID = userID

	return &ws, nil
}

// Save persists the workspace, replacing any previous state for the user.
func (s *SessionStore) Save(ctx context.Context, workspace *types.Workspace) error {
	if workspace == nil || workspace.UserID == "" {
		return fmt.Errorf("%w: workspace with user ID is required", storage.ErrInvalidInput)
	}

	workspace.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(workspace)
	if err != nil {
		return fmt.Errorf("sqlite: marshal workspace for %q: %w", workspace.UserID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspaces (user_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		workspace.UserID, string(payload), workspace.UpdatedAt,
	)
	if err != nil {
		return storage.NewPersistenceError("sqlite-session", "Save", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// AND no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable (conservative: no deletion).
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof returns exit code 1 when no files are open, meaning stale.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
