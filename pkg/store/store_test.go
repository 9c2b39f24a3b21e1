package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/focusquest-dev/focusquest/game"
)

// storeFactories returns every locally runnable Store implementation.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			s := NewMemoryStore()
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func sampleState(userID string, xp int) *game.UserGameState {
	return &game.UserGameState{
		UserID:        userID,
		TotalXP:       xp,
		Level:         xp/100 + 1,
		CurrentStreak: 3,
		BestStreak:    5,
		LastActive:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tier:          game.TierBronze,
		UpdatedAt:     time.Now().UTC(),
	}
}

func sampleSummary(sessionID, userID string) *game.SessionSummary {
	return &game.SessionSummary{
		SessionID: sessionID,
		UserID:    userID,
		ScoredAt:  time.Now().UTC(),
		XP:        game.XPAward{Delta: 45, TotalXP: 45, Level: 1, Source: game.SourceSession},
	}
}

func TestStore_CommitAndGet(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			state := sampleState("user-1", 45)
			summary := sampleSummary("sess-1", "user-1")

			if err := s.Commit(ctx, state, summary); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}

			loaded, err := s.GetState(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetState failed: %v", err)
			}
			if loaded.TotalXP != 45 {
				t.Errorf("TotalXP mismatch: got %d, want 45", loaded.TotalXP)
			}
			if !loaded.LastActive.Equal(state.LastActive) {
				t.Errorf("LastActive mismatch: got %v, want %v", loaded.LastActive, state.LastActive)
			}

			gotSummary, err := s.GetSummary(ctx, "sess-1")
			if err != nil {
				t.Fatalf("GetSummary failed: %v", err)
			}
			if gotSummary.XP.Delta != 45 {
				t.Errorf("summary XP delta mismatch: got %d, want 45", gotSummary.XP.Delta)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			if _, err := s.GetState(ctx, "nobody"); !errors.Is(err, ErrStateNotFound) {
				t.Errorf("expected ErrStateNotFound, got %v", err)
			}
			if _, err := s.GetSummary(ctx, "no-session"); !errors.Is(err, ErrSummaryNotFound) {
				t.Errorf("expected ErrSummaryNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ListStates(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			for _, id := range []string{"user-b", "user-a", "user-c"} {
				if err := s.SaveState(ctx, sampleState(id, 100)); err != nil {
					t.Fatalf("SaveState failed: %v", err)
				}
			}

			states, err := s.ListStates(ctx)
			if err != nil {
				t.Fatalf("ListStates failed: %v", err)
			}
			if len(states) != 3 {
				t.Fatalf("expected 3 states, got %d", len(states))
			}
			if states[0].UserID != "user-a" {
				t.Errorf("expected deterministic order, got %s first", states[0].UserID)
			}
		})
	}
}

func TestStore_Leaderboard(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			lb, ok := s.(Leaderboard)
			if !ok {
				t.Fatalf("%s store does not implement Leaderboard", name)
			}
			ctx := context.Background()

			for id, xp := range map[string]int{"low": 10, "high": 900, "mid": 400} {
				if err := s.SaveState(ctx, sampleState(id, xp)); err != nil {
					t.Fatalf("SaveState failed: %v", err)
				}
			}

			top, err := lb.Top(ctx, 2)
			if err != nil {
				t.Fatalf("Top failed: %v", err)
			}
			if len(top) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(top))
			}
			if top[0].UserID != "high" || top[1].UserID != "mid" {
				t.Errorf("unexpected order: %v", top)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if _, err := s.GetState(ctx, "user-1"); !errors.Is(err, ErrStoreClosed) {
				t.Errorf("expected ErrStoreClosed, got %v", err)
			}
			if err := s.Commit(ctx, sampleState("user-1", 1), sampleSummary("s", "user-1")); !errors.Is(err, ErrStoreClosed) {
				t.Errorf("expected ErrStoreClosed, got %v", err)
			}
		})
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.GetState(ctx, "../evil"); !errors.Is(err, ErrInvalidPathComponent) {
		t.Errorf("expected ErrInvalidPathComponent, got %v", err)
	}
	if err := s.SaveState(ctx, sampleState("a/b", 1)); !errors.Is(err, ErrInvalidPathComponent) {
		t.Errorf("expected ErrInvalidPathComponent, got %v", err)
	}
}

func TestFileStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := s.Commit(ctx, sampleState("user-1", 250), sampleSummary("sess-1", "user-1")); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A fresh store over the same directory sees the committed data.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	state, err := reopened.GetState(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetState after reopen failed: %v", err)
	}
	if state.TotalXP != 250 {
		t.Errorf("TotalXP mismatch after reopen: got %d, want 250", state.TotalXP)
	}
	if _, err := reopened.GetSummary(ctx, "sess-1"); err != nil {
		t.Errorf("GetSummary after reopen failed: %v", err)
	}
}

func TestFileStore_FailedCommitLeavesNoSummary(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// Occupy the state path with a directory so the state rename fails.
	if err := os.Mkdir(filepath.Join(dir, "states", "user-1.json"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	if err := s.Commit(ctx, sampleState("user-1", 45), sampleSummary("sess-1", "user-1")); err == nil {
		t.Fatal("expected Commit to fail")
	}

	// A failed commit must not leave the idempotency marker behind,
	// otherwise a resubmitted session would be treated as already scored.
	if _, err := s.GetSummary(ctx, "sess-1"); !errors.Is(err, ErrSummaryNotFound) {
		t.Errorf("expected ErrSummaryNotFound after failed commit, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	s, err := New(Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("New(memory) failed: %v", err)
	}
	defer s.Close()

	if _, err := New(Config{Driver: "etched-stone"}); err == nil {
		t.Error("expected error for unknown driver")
	}

	drivers := ListDrivers()
	for _, want := range []string{"memory", "file", "redis"} {
		found := false
		for _, d := range drivers {
			if d == want {
				found = true
			}
		}
		if !found {
			t.Errorf("driver %q not registered (have %v)", want, drivers)
		}
	}
}
