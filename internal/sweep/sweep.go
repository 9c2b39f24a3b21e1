// Package sweep runs the scheduled inactivity demotion: a daily pass over
// every committed user state that drops inactive users one tier per cycle.
// Sweeping is the only tier change that happens outside a scored session.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/ranking"
	"github.com/focusquest-dev/focusquest/pkg/bus"
	obs "github.com/focusquest-dev/focusquest/pkg/observability"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

// DefaultSchedule runs the sweep daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// Sweeper applies inactivity demotions on a cron schedule.
type Sweeper struct {
	store    store.Store
	bus      *bus.Bus
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule overrides the cron schedule.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithBus attaches an event bus for demotion announcements.
func WithBus(b *bus.Bus) Option {
	return func(s *Sweeper) {
		s.bus = b
	}
}

// WithClock overrides the sweeper's clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a sweeper over the given store.
func New(st store.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    st,
		schedule: DefaultSchedule,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep and returns. Stop cancels the schedule.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		demoted, err := s.RunOnce(context.Background())
		if err != nil {
			log.Printf("Warning: demotion sweep failed: %v", err)
			return
		}
		if demoted > 0 {
			log.Printf("Demotion sweep complete: %d user(s) demoted", demoted)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop cancels the schedule. Safe to call on a never-started sweeper.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce performs one demotion pass and returns the number of demotions.
// A user that fails to save is logged and skipped; the pass continues.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	states, err := s.store.ListStates(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing states: %w", err)
	}

	today := s.now()
	demoted := 0

	for _, state := range states {
		next, drop := ranking.Demote(state.Tier, state.DaysInactive(today))
		if !drop {
			continue
		}

		updated := state.Clone()
		updated.Tier = next
		updated.UpdatedAt = today

		if err := s.store.SaveState(ctx, updated); err != nil {
			log.Printf("Warning: failed to demote user %s: %v", state.UserID, err)
			continue
		}
		demoted++
		obs.RecordTierChange("down", string(next))

		if s.bus != nil {
			err := s.bus.Publish(game.RankingUpdated{
				UserID:          updated.UserID,
				Tier:            next,
				Score:           ranking.CompositeScore(updated.TotalXP, updated.CurrentStreak),
				ProgressPercent: ranking.Progress(updated.TotalXP, updated.CurrentStreak, next),
				Demoted:         true,
				NextTier:        game.NextTier(next),
			})
			if err != nil {
				log.Printf("Warning: failed to announce demotion for user %s: %v", updated.UserID, err)
			}
		}
	}

	return demoted, nil
}
