// Package store persists user game state and scored session summaries.
// The summary record doubles as the pipeline's idempotency marker: a session
// whose summary exists has been scored and must never be scored again.
package store

import (
	"context"
	"errors"

	"github.com/focusquest-dev/focusquest/game"
)

// Common errors for storage operations.
var (
	// ErrStateNotFound is returned when a user has no committed state.
	ErrStateNotFound = errors.New("user game state not found")
	// ErrSummaryNotFound is returned when a session has no stored summary.
	ErrSummaryNotFound = errors.New("session summary not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store abstracts game state persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetState retrieves a user's aggregate state.
	// Returns ErrStateNotFound for users with no history.
	GetState(ctx context.Context, userID string) (*game.UserGameState, error)

	// SaveState writes a user's aggregate state on its own, outside a
	// scoring commit. Used by maintenance jobs such as the demotion sweep.
	SaveState(ctx context.Context, state *game.UserGameState) error

	// ListStates returns every committed user state.
	ListStates(ctx context.Context) ([]*game.UserGameState, error)

	// GetSummary retrieves the stored summary for a scored session.
	// Returns ErrSummaryNotFound if the session has not been scored.
	GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error)

	// Commit atomically writes the new state and the session summary.
	// On error, neither is written.
	Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error

	// Close releases any resources held by the store.
	Close() error
}

// LeaderboardEntry is one row of an XP leaderboard.
type LeaderboardEntry struct {
	UserID  string    `json:"userId"`
	TotalXP int       `json:"totalXp"`
	Tier    game.Tier `json:"tier"`
}

// Leaderboard is implemented by stores that can rank users by XP.
type Leaderboard interface {
	// Top returns the n highest-XP users in descending order.
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
}
