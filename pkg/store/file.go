package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/focusquest-dev/focusquest/game"
)

// ErrInvalidPathComponent is returned when an identifier contains unsafe characters.
var ErrInvalidPathComponent = errors.New("invalid path component: contains path separator or traversal sequence")

// validatePathComponent checks that a string is safe to use as a path component.
// It rejects empty strings, path separators, and traversal sequences.
func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidPathComponent
	}
	return nil
}

// FileStore implements Store using JSON files.
// Storage layout:
//
//	~/.focusquest/
//	  ├── states/
//	  │   └── <user-id>.json
//	  └── summaries/
//	      └── <session-id>.json
//
// Commit writes the summary first and the state second, each through a
// rename so individual files are never half-written. A failed state write
// removes the just-written summary, so a failed commit leaves no
// idempotency marker and the session can be resubmitted. Only a crash
// between the two writes can leave a summary without the matching state.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a file-based store.
// If baseDir is empty, uses ~/.focusquest.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".focusquest")
	}

	for _, dir := range []string{baseDir, filepath.Join(baseDir, "states"), filepath.Join(baseDir, "summaries")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (f *FileStore) statePath(userID string) string {
	return filepath.Join(f.baseDir, "states", userID+".json")
}

func (f *FileStore) summaryPath(sessionID string) string {
	return filepath.Join(f.baseDir, "summaries", sessionID+".json")
}

// GetState retrieves a user's aggregate state.
func (f *FileStore) GetState(ctx context.Context, userID string) (*game.UserGameState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(userID); err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	data, err := os.ReadFile(f.statePath(userID)) // #nosec G304 - path component validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var state game.UserGameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// SaveState writes a user's aggregate state.
func (f *FileStore) SaveState(ctx context.Context, state *game.UserGameState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(state.UserID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	return writeJSON(f.statePath(state.UserID), state)
}

// ListStates returns every committed user state.
func (f *FileStore) ListStates(ctx context.Context) ([]*game.UserGameState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(filepath.Join(f.baseDir, "states"))
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}

	states := make([]*game.UserGameState, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.baseDir, "states", entry.Name())) // #nosec G304 - listed by us
		if err != nil {
			return nil, fmt.Errorf("read state %s: %w", entry.Name(), err)
		}
		var state game.UserGameState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("unmarshal state %s: %w", entry.Name(), err)
		}
		states = append(states, &state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })
	return states, nil
}

// GetSummary retrieves the stored summary for a scored session.
func (f *FileStore) GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	if err := validatePathComponent(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	data, err := os.ReadFile(f.summaryPath(sessionID)) // #nosec G304 - path component validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("read summary: %w", err)
	}

	var summary game.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// Commit writes the session summary and the new state.
func (f *FileStore) Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	if err := validatePathComponent(state.UserID); err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	if err := validatePathComponent(summary.SessionID); err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	if err := writeJSON(f.summaryPath(summary.SessionID), summary); err != nil {
		return err
	}
	if err := writeJSON(f.statePath(state.UserID), state); err != nil {
		// The summary is the pipeline's idempotency marker: left behind, it
		// would make every retry return rewards the state never received.
		if rmErr := os.Remove(f.summaryPath(summary.SessionID)); rmErr != nil {
			return fmt.Errorf("%w (orphan summary could not be removed: %v)", err, rmErr)
		}
		return err
	}
	return nil
}

// Top returns the n highest-XP users in descending order.
func (f *FileStore) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	states, err := f.ListStates(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(states))
	for _, s := range states {
		entries = append(entries, LeaderboardEntry{UserID: s.UserID, TotalXP: s.TotalXP, Tier: s.Tier})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalXP != entries[j].TotalXP {
			return entries[i].TotalXP > entries[j].TotalXP
		}
		return entries[i].UserID < entries[j].UserID
	})
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

// Close marks the store closed.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// writeJSON marshals v and writes it through a temp-file rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
