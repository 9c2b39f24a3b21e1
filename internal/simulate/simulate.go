// Package simulate drives the scoring pipeline with deterministic synthetic
// users. The same seed always produces the same sessions and therefore the
// same report, which makes the simulator usable as a regression harness as
// well as a demo.
package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/pipeline"
)

// Config shapes one simulation run.
type Config struct {
	// Users is the number of synthetic users.
	Users int
	// Days is the number of simulated calendar days.
	Days int
	// Seed fixes the random source; runs with equal seeds are identical.
	Seed int64
	// Start is the first simulated day. Zero means 30 days before now.
	Start time.Time
}

// Report aggregates the outcome of a run.
type Report struct {
	Sessions   int            `json:"sessions"`
	TotalXP    int            `json:"totalXp"`
	Flagged    int            `json:"flagged"`
	Milestones int            `json:"milestones"`
	Promotions int            `json:"promotions"`
	Tiers      map[string]int `json:"tiers"`
}

// Runner owns one simulation.
type Runner struct {
	orchestrator *pipeline.Orchestrator
	config       Config
}

// New creates a runner. Zero config fields get usable defaults.
func New(o *pipeline.Orchestrator, config Config) *Runner {
	if config.Users <= 0 {
		config.Users = 5
	}
	if config.Days <= 0 {
		config.Days = 14
	}
	if config.Start.IsZero() {
		config.Start = time.Now().UTC().AddDate(0, 0, -30)
	}
	return &Runner{orchestrator: o, config: config}
}

// Run simulates every user in parallel and returns the aggregate report.
// Users are independent; each worker owns its user's entire day sequence so
// the per-user session order is deterministic.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Tiers: make(map[string]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < r.config.Users; i++ {
		userIdx := i
		g.Go(func() error {
			// Uncorrelated per-user streams from the run seed.
			rng := rand.New(rand.NewSource(r.config.Seed + int64(userIdx)*7919))
			userID := fmt.Sprintf("sim-user-%02d", userIdx)

			var lastTier game.Tier
			for day := 0; day < r.config.Days; day++ {
				// Each user skips some days so streak breaks occur.
				if rng.Float64() < 0.2 {
					continue
				}

				session := r.buildSession(rng, userID, day)
				summary, err := r.orchestrator.Process(gctx, session, game.SourceSession)
				if err != nil {
					return fmt.Errorf("scoring %s day %d: %w", userID, day, err)
				}

				mu.Lock()
				report.Sessions++
				report.TotalXP += summary.XP.Delta
				if !summary.Audit.Valid {
					report.Flagged++
				}
				if summary.Streak.Milestone > 0 {
					report.Milestones++
				}
				if summary.Ranking.Promoted {
					report.Promotions++
				}
				lastTier = summary.Ranking.Tier
				mu.Unlock()
			}

			if lastTier != "" {
				mu.Lock()
				report.Tiers[string(lastTier)]++
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// buildSession generates one synthetic session with a plausible event log.
// A small fraction of sessions are deliberately suspicious so audit paths
// get exercised.
func (r *Runner) buildSession(rng *rand.Rand, userID string, day int) *game.Session {
	minutes := 15 + rng.Intn(76) // 15..90
	efficiency := 50 + rng.Intn(51)

	ended := r.config.Start.AddDate(0, 0, day).
		Add(time.Duration(9+rng.Intn(12)) * time.Hour)

	session := game.NewSession(userID, minutes, minutes, efficiency)
	session.EndedAt = ended

	if rng.Float64() < 0.1 {
		// Suspicious shape: a bare log with no start or end.
		session.AppendAt(game.EventHeartbeat, "", ended.Add(-time.Duration(minutes)*time.Minute/2))
		return session
	}

	started := ended.Add(-time.Duration(minutes) * time.Minute)
	session.AppendAt(game.EventStart, "", started)
	for ts := started.Add(5 * time.Minute); ts.Before(ended); ts = ts.Add(5 * time.Minute) {
		session.AppendAt(game.EventHeartbeat, "", ts)
	}
	session.AppendAt(game.EventEnd, "", ended)
	return session
}
