package store

import (
	"context"
	"sort"
	"sync"

	"github.com/focusquest-dev/focusquest/game"
)

// MemoryStore is an in-memory Store for tests, the simulator, and
// single-process deployments that don't need durability.
type MemoryStore struct {
	mu        sync.RWMutex
	states    map[string]*game.UserGameState
	summaries map[string]*game.SessionSummary
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[string]*game.UserGameState),
		summaries: make(map[string]*game.SessionSummary),
	}
}

// GetState retrieves a user's aggregate state.
func (m *MemoryStore) GetState(ctx context.Context, userID string) (*game.UserGameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	state, ok := m.states[userID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return state.Clone(), nil
}

// SaveState writes a user's aggregate state.
func (m *MemoryStore) SaveState(ctx context.Context, state *game.UserGameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.states[state.UserID] = state.Clone()
	return nil
}

// ListStates returns every committed user state.
func (m *MemoryStore) ListStates(ctx context.Context) ([]*game.UserGameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	states := make([]*game.UserGameState, 0, len(m.states))
	for _, s := range m.states {
		states = append(states, s.Clone())
	}
	// Deterministic order for callers that iterate.
	sort.Slice(states, func(i, j int) bool { return states[i].UserID < states[j].UserID })
	return states, nil
}

// GetSummary retrieves the stored summary for a scored session.
func (m *MemoryStore) GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	summary, ok := m.summaries[sessionID]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	copied := *summary
	return &copied, nil
}

// Commit atomically writes the new state and the session summary.
func (m *MemoryStore) Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	copied := *summary
	m.states[state.UserID] = state.Clone()
	m.summaries[summary.SessionID] = &copied
	return nil
}

// Top returns the n highest-XP users in descending order.
func (m *MemoryStore) Top(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	entries := make([]LeaderboardEntry, 0, len(m.states))
	for _, s := range m.states {
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
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
