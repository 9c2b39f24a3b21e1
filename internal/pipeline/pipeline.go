// Package pipeline orchestrates session scoring: one completed session in,
// one committed SessionSummary out. The orchestrator runs the engines in a
// fixed order (XP, streak, audit, ranking), commits state and summary
// atomically, and publishes the resulting events.
//
// Scoring is at-most-once per session ID. The stored summary is the
// idempotency marker: re-processing a scored session returns the stored
// summary and invokes no engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/audit"
	"github.com/focusquest-dev/focusquest/internal/observability"
	"github.com/focusquest-dev/focusquest/internal/ranking"
	"github.com/focusquest-dev/focusquest/internal/streak"
	"github.com/focusquest-dev/focusquest/internal/xp"
	"github.com/focusquest-dev/focusquest/pkg/bus"
	obs "github.com/focusquest-dev/focusquest/pkg/observability"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

// CommitError wraps a failed store commit. The user's state is unchanged
// when Process returns one; the session may be resubmitted.
type CommitError struct {
	SessionID string
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed for session %s: %v", e.SessionID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Orchestrator drives the scoring pipeline for one process.
type Orchestrator struct {
	store store.Store
	bus   *bus.Bus
	audit *audit.Engine
	now   func() time.Time

	mu        sync.RWMutex
	userLocks map[string]*sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the orchestrator's clock. Used by tests and replay.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithBus attaches an event bus. Without one, events are not published.
func WithBus(b *bus.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = b
	}
}

// New creates an orchestrator over the given store and audit engine.
func New(st store.Store, auditEngine *audit.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		audit:     auditEngine,
		now:       func() time.Time { return time.Now().UTC() },
		userLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.audit == nil {
		o.audit = audit.New(game.AuditSoft)
	}
	return o
}

// Process scores one completed session. It is idempotent per session ID and
// serializes scoring per user; sessions from different users run in parallel.
func (o *Orchestrator) Process(ctx context.Context, session *game.Session, source game.Source) (*game.SessionSummary, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.Process",
		trace.WithAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("session.user", session.UserID),
			attribute.String("session.source", string(source)),
		))
	defer span.End()

	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("session rejected: %w", err)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", xp.ErrUnknownSource, source)
	}

	// Fast path: already scored. Only the not-found sentinel means the
	// session still needs scoring; any other store error surfaces.
	summary, err := o.store.GetSummary(ctx, session.ID)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, store.ErrSummaryNotFound) {
		return nil, fmt.Errorf("checking summary for %s: %w", session.ID, err)
	}

	lock := o.userLock(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a concurrent caller may have committed
	// between the fast path and lock acquisition.
	summary, err = o.store.GetSummary(ctx, session.ID)
	if err == nil {
		return summary, nil
	}
	if !errors.Is(err, store.ErrSummaryNotFound) {
		return nil, fmt.Errorf("checking summary for %s: %w", session.ID, err)
	}

	start := o.now()

	state, err := o.store.GetState(ctx, session.UserID)
	switch {
	case errors.Is(err, store.ErrStateNotFound):
		state = game.NewUserGameState(session.UserID)
	case err != nil:
		return nil, fmt.Errorf("loading state for %s: %w", session.UserID, err)
	}

	summary = o.evaluate(session, source, state)

	next := state.Clone()
	next.TotalXP = summary.XP.TotalXP
	next.Level = summary.XP.Level
	next.CurrentStreak = summary.Streak.Current
	next.BestStreak = summary.Streak.Best
	next.LastActive = session.EndedAt
	next.Tier = summary.Ranking.Tier
	next.UpdatedAt = summary.ScoredAt

	if err := o.store.Commit(ctx, next, summary); err != nil {
		obs.RecordCommitFailure()
		return nil, &CommitError{SessionID: session.ID, Err: err}
	}

	o.publish(summary)
	o.record(summary, o.now().Sub(start))

	return summary, nil
}

// evaluate runs the engines in their fixed order against the loaded state.
// Every engine reads the OLD aggregate; only the commit mutates state.
func (o *Orchestrator) evaluate(session *game.Session, source game.Source, state *game.UserGameState) *game.SessionSummary {
	summary := &game.SessionSummary{
		SessionID: session.ID,
		UserID:    session.UserID,
		ScoredAt:  o.now(),
	}

	award, err := xp.Award(session, source, state.TotalXP)
	if err != nil {
		// A rejected award still flows through the rest of the pipeline:
		// the session is audit material even when it earns nothing.
		log.Printf("Warning: session %s earned no XP: %v", session.ID, err)
		award = xp.Skipped(source, state.TotalXP)
	}
	summary.XP = award

	summary.Streak = streak.Advance(state.LastActive, session.EndedAt, state.CurrentStreak, state.BestStreak)

	// The flat streak bonus folds into the award, but only when the streak
	// actually advanced: a same-day repeat session cannot re-collect it.
	if !summary.XP.Skipped && summary.Streak.Delta > 0 && summary.Streak.BonusXP > 0 {
		summary.XP.Delta += summary.Streak.BonusXP
		summary.XP.TotalXP += summary.Streak.BonusXP
		summary.XP.Level = xp.Level(summary.XP.TotalXP)
		summary.XP.LevelUp = summary.XP.Level > xp.Level(state.TotalXP)
	}

	summary.Audit = o.audit.Evaluate(session, audit.History{
		CurrentStreak: state.CurrentStreak,
		TotalXP:       state.TotalXP,
	})

	summary.Ranking = ranking.Evaluate(
		summary.XP.TotalXP,
		summary.Streak.Current,
		state.Tier,
		state.DaysInactive(session.EndedAt),
	)

	summary.Notify = game.Notifications{
		XPGained:         summary.XP.Delta > 0,
		StreakMaintained: summary.Streak.Current > 0 && !summary.Streak.Broken,
		StreakMilestone:  summary.Streak.Milestone > 0,
		RankingPromoted:  summary.Ranking.Promoted,
		ConfettiTrigger:  summary.Streak.Milestone > 0 || summary.Ranking.Promoted || summary.XP.LevelUp,
	}

	return summary
}

// publish emits the post-commit event set. Publishing is best-effort: a
// closed bus logs and moves on, scoring has already committed.
func (o *Orchestrator) publish(summary *game.SessionSummary) {
	if o.bus == nil {
		return
	}

	events := make([]game.Event, 0, 4)

	if !summary.XP.Skipped {
		events = append(events, game.XPUpdated{
			UserID:        summary.UserID,
			AmountAwarded: summary.XP.Delta,
			TotalXP:       summary.XP.TotalXP,
			Level:         summary.XP.Level,
			Source:        summary.XP.Source,
			LevelUp:       summary.XP.LevelUp,
		})
	}

	events = append(events,
		game.StreakUpdated{
			UserID:           summary.UserID,
			CurrentStreak:    summary.Streak.Current,
			BestStreak:       summary.Streak.Best,
			StreakBroken:     summary.Streak.Broken,
			MilestoneReached: summary.Streak.Milestone,
			StreakMultiplier: summary.Streak.Multiplier,
			StreakBonusXP:    summary.Streak.BonusXP,
		},
		game.AuditValidation{
			UserID:             summary.UserID,
			SessionID:          summary.SessionID,
			IsValid:            summary.Audit.Valid,
			ValidationMode:     summary.Audit.Mode,
			BaseScore:          summary.Audit.BaseScore,
			AdjustedScore:      summary.Audit.AdjustedScore,
			ForgivenessApplied: summary.Audit.Forgiveness,
			Threshold:          summary.Audit.Threshold,
			Message:            auditMessage(summary.Audit),
		},
		game.RankingUpdated{
			UserID:          summary.UserID,
			Tier:            summary.Ranking.Tier,
			Score:           summary.Ranking.Score,
			ProgressPercent: summary.Ranking.ProgressPercent,
			Promoted:        summary.Ranking.Promoted,
			Demoted:         summary.Ranking.Demoted,
			NextTier:        summary.Ranking.NextTier,
		},
	)

	for _, event := range events {
		if err := o.bus.Publish(event); err != nil {
			log.Printf("Warning: failed to publish %s event for user %s: %v",
				event.Kind(), summary.UserID, err)
			continue
		}
		obs.RecordEventPublished(event.Kind())
	}
	obs.SetEventsDropped(o.bus.Dropped())
}

// record updates pipeline metrics for one scored session.
func (o *Orchestrator) record(summary *game.SessionSummary, duration time.Duration) {
	obs.RecordSessionScored(summary.Audit.Valid, string(summary.Audit.RiskLevel), duration)
	if summary.XP.Delta > 0 {
		obs.RecordXPAwarded(string(summary.XP.Source), summary.XP.Delta)
	}
	if summary.Streak.Broken {
		obs.RecordStreakBroken()
	}
	if summary.Streak.Milestone > 0 {
		obs.RecordMilestone(fmt.Sprintf("%d", summary.Streak.Milestone))
	}
	if summary.Ranking.Promoted {
		obs.RecordTierChange("up", string(summary.Ranking.Tier))
	}
	if summary.Ranking.Demoted {
		obs.RecordTierChange("down", string(summary.Ranking.Tier))
	}
}

// userLock returns the mutex serializing scoring for one user, creating it
// on first use.
func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.RLock()
	lock, exists := o.userLocks[userID]
	o.mu.RUnlock()

	if exists {
		return lock
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Double-check after acquiring write lock
	if lock, exists := o.userLocks[userID]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	o.userLocks[userID] = lock
	return lock
}

// auditMessage renders the one-line advisory for the validation event.
func auditMessage(r game.AuditReport) string {
	if r.Degraded {
		return "Session log could not be fully analyzed; result recorded as advisory."
	}
	if r.Valid {
		if len(r.Findings) == 0 {
			return "Session looks great. Keep it up!"
		}
		return fmt.Sprintf("Session accepted with %d minor observation(s).", len(r.Findings))
	}
	return fmt.Sprintf("Session flagged for review (score %.1f over threshold %.0f). Rewards were still granted.",
		r.AdjustedScore, r.Threshold)
}
