// Package badges grants one-time achievement badges from scored session
// summaries. The evaluator is an optional collaborator: the scoring
// pipeline works identically with or without it.
package badges

import (
	"log"
	"sync"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/pkg/bus"
)

// Def is a badge definition with its unlock predicate.
type Def struct {
	Badge game.Badge
	// Unlock reports whether the summary earns the badge.
	Unlock func(summary *game.SessionSummary) bool
}

// Defaults is the built-in badge set.
func Defaults() []Def {
	return []Def{
		{
			Badge: game.Badge{ID: "first-session", Title: "First Steps", Description: "Complete your first session"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.XP.Delta > 0
			},
		},
		{
			Badge: game.Badge{ID: "streak-3", Title: "Warming Up", Description: "Reach a 3-day streak"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.Streak.Current >= 3
			},
		},
		{
			Badge: game.Badge{ID: "streak-7", Title: "Week One", Description: "Reach a 7-day streak"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.Streak.Current >= 7
			},
		},
		{
			Badge: game.Badge{ID: "streak-30", Title: "Habit Formed", Description: "Reach a 30-day streak"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.Streak.Current >= 30
			},
		},
		{
			Badge: game.Badge{ID: "level-10", Title: "Double Digits", Description: "Reach level 10"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.XP.Level >= 10
			},
		},
		{
			Badge: game.Badge{ID: "xp-10000", Title: "Ten Thousand Club", Description: "Accumulate 10,000 XP"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.XP.TotalXP >= 10000
			},
		},
		{
			Badge: game.Badge{ID: "tier-gold", Title: "Gilded", Description: "Reach the gold tier"},
			Unlock: func(s *game.SessionSummary) bool {
				return game.TierIndex(s.Ranking.Tier) >= game.TierIndex(game.TierGold)
			},
		},
		{
			Badge: game.Badge{ID: "tier-diamond", Title: "Unbreakable", Description: "Reach the diamond tier"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.Ranking.Tier == game.TierDiamond
			},
		},
		{
			Badge: game.Badge{ID: "comeback", Title: "Comeback", Description: "Return after a broken streak"},
			Unlock: func(s *game.SessionSummary) bool {
				return s.Streak.Broken && s.Streak.PriorStreak >= 7
			},
		},
	}
}

// Evaluator grants badges exactly once per user and announces each grant
// on the bus.
type Evaluator struct {
	defs []Def
	bus  *bus.Bus

	mu      sync.Mutex
	granted map[string]map[string]struct{} // userID -> badge IDs
}

// NewEvaluator creates an evaluator over the given definitions; nil defs
// selects Defaults. The bus may be nil, in which case grants are recorded
// but not announced.
func NewEvaluator(defs []Def, b *bus.Bus) *Evaluator {
	if defs == nil {
		defs = Defaults()
	}
	return &Evaluator{
		defs:    defs,
		bus:     b,
		granted: make(map[string]map[string]struct{}),
	}
}

// Evaluate applies every definition to the summary and returns the badges
// newly unlocked by it. A badge a user already holds is never re-granted.
func (e *Evaluator) Evaluate(summary *game.SessionSummary) []game.Badge {
	e.mu.Lock()
	defer e.mu.Unlock()

	held, ok := e.granted[summary.UserID]
	if !ok {
		held = make(map[string]struct{})
		e.granted[summary.UserID] = held
	}

	var unlocked []game.Badge
	for _, def := range e.defs {
		if _, has := held[def.Badge.ID]; has {
			continue
		}
		if !def.Unlock(summary) {
			continue
		}
		held[def.Badge.ID] = struct{}{}
		unlocked = append(unlocked, def.Badge)

		if e.bus != nil {
			err := e.bus.Publish(game.BadgeUnlocked{
				UserID:      summary.UserID,
				Badge:       def.Badge,
				TotalBadges: len(held),
			})
			if err != nil {
				log.Printf("Warning: failed to announce badge %s for user %s: %v",
					def.Badge.ID, summary.UserID, err)
			}
		}
	}
	return unlocked
}

// Held returns the badge IDs a user has unlocked.
func (e *Evaluator) Held(userID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.granted[userID]))
	for id := range e.granted[userID] {
		ids = append(ids, id)
	}
	return ids
}
