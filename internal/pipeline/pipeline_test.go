package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/audit"
	"github.com/focusquest-dev/focusquest/pkg/bus"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func cleanSession(userID string, ended time.Time) *game.Session {
	s := game.NewSession(userID, 30, 30, 90)
	s.EndedAt = ended
	s.AppendAt(game.EventStart, "", ended.Add(-30*time.Minute))
	for i := 1; i <= 5; i++ {
		s.AppendAt(game.EventHeartbeat, "", ended.Add(-30*time.Minute).Add(time.Duration(i*5)*time.Minute))
	}
	s.AppendAt(game.EventEnd, "", ended)
	return s
}

func TestProcessFirstSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)))

	session := cleanSession("alice", now)
	summary, err := o.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	// 30 base + 10 focus + (90-80)/2 efficiency
	assert.Equal(t, 45, summary.XP.Delta)
	assert.Equal(t, 45, summary.XP.TotalXP)
	assert.Equal(t, 1, summary.XP.Level)
	assert.Equal(t, 1, summary.Streak.Current)
	assert.True(t, summary.Audit.Valid)
	assert.Equal(t, game.TierBronze, summary.Ranking.Tier)
	assert.True(t, summary.Notify.XPGained)
	assert.True(t, summary.Notify.StreakMaintained)
	assert.False(t, summary.Notify.StreakMilestone)

	state, err := st.GetState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 45, state.TotalXP)
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, now, state.LastActive)
}

func TestProcessIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)))

	session := cleanSession("bob", now)
	first, err := o.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	second, err := o.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	state, err := st.GetState(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, first.XP.TotalXP, state.TotalXP, "re-processing must not double-award")
}

func TestProcessConcurrentSameSession(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)))
	session := cleanSession("carol", now)

	const workers = 8
	var wg sync.WaitGroup
	summaries := make([]*game.SessionSummary, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = o.Process(context.Background(), session, game.SourceSession)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, summaries[0], summaries[i])
	}

	state, err := st.GetState(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, summaries[0].XP.Delta, state.TotalXP)
}

func TestProcessStreakContinuation(t *testing.T) {
	day1 := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	day3 := day2.Add(24 * time.Hour)

	st := store.NewMemoryStore()
	defer st.Close()
	o := New(st, audit.New(game.AuditSoft))

	for i, day := range []time.Time{day1, day2, day3} {
		summary, err := o.Process(context.Background(), cleanSession("dave", day), game.SourceSession)
		require.NoError(t, err)
		assert.Equal(t, i+1, summary.Streak.Current)
	}

	// Day three is the first milestone.
	state, err := st.GetState(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentStreak)
	assert.Equal(t, 3, state.BestStreak)
}

func TestProcessStreakBonusCommitted(t *testing.T) {
	day0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()
	o := New(st, audit.New(game.AuditSoft))

	for i := 0; i < 7; i++ {
		_, err := o.Process(context.Background(), cleanSession("judy", day0.AddDate(0, 0, i)), game.SourceSession)
		require.NoError(t, err)
	}

	state, err := st.GetState(context.Background(), "judy")
	require.NoError(t, err)
	// Seven 45-XP awards plus the 2-XP bonus for a full streak week.
	assert.Equal(t, 7*45+2, state.TotalXP)

	// A same-day repeat session earns the award but not the bonus again.
	repeat := cleanSession("judy", day0.AddDate(0, 0, 6).Add(2*time.Hour))
	summary, err := o.Process(context.Background(), repeat, game.SourceSession)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Streak.Delta)

	state, err = st.GetState(context.Background(), "judy")
	require.NoError(t, err)
	assert.Equal(t, 7*45+2+45, state.TotalXP)
}

func TestProcessInvalidSessionStillCommitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()
	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)))

	session := game.NewSession("erin", 30, 0, 50)
	session.EndedAt = now

	summary, err := o.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	assert.True(t, summary.XP.Skipped)
	assert.Equal(t, 0, summary.XP.Delta)
	assert.False(t, summary.Notify.XPGained)
	// The audit still ran and saw the zero duration.
	assert.NotEmpty(t, summary.Audit.Findings)
	// Streak still advanced: the session happened, it just earned nothing.
	assert.Equal(t, 1, summary.Streak.Current)

	stored, err := st.GetSummary(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, stored)
}

func TestProcessRejectsMissingUser(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	o := New(st, audit.New(game.AuditSoft))

	session := game.NewSession("", 30, 30, 90)
	_, err := o.Process(context.Background(), session, game.SourceSession)
	assert.ErrorIs(t, err, game.ErrMissingUser)
}

func TestProcessRejectsUnknownSource(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	o := New(st, audit.New(game.AuditSoft))

	session := cleanSession("frank", time.Now().UTC())
	_, err := o.Process(context.Background(), session, game.Source("mystery"))
	assert.Error(t, err)
}

type failingStore struct {
	store.Store
}

func (f *failingStore) Commit(ctx context.Context, state *game.UserGameState, summary *game.SessionSummary) error {
	return errors.New("disk full")
}

func TestProcessCommitFailureLeavesStateUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	inner := store.NewMemoryStore()
	defer inner.Close()
	o := New(&failingStore{Store: inner}, audit.New(game.AuditSoft), WithClock(fixedClock(now)))

	session := cleanSession("grace", now)
	_, err := o.Process(context.Background(), session, game.SourceSession)

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, session.ID, commitErr.SessionID)

	_, err = inner.GetState(context.Background(), "grace")
	assert.ErrorIs(t, err, store.ErrStateNotFound)
	_, err = inner.GetSummary(context.Background(), session.ID)
	assert.ErrorIs(t, err, store.ErrSummaryNotFound)
}

type brokenSummaryStore struct {
	store.Store
	err error
}

func (b *brokenSummaryStore) GetSummary(ctx context.Context, sessionID string) (*game.SessionSummary, error) {
	return nil, b.err
}

func TestProcessSurfacesSummaryLookupErrors(t *testing.T) {
	inner := store.NewMemoryStore()
	defer inner.Close()
	lookupErr := errors.New("connection reset")
	o := New(&brokenSummaryStore{Store: inner, err: lookupErr}, audit.New(game.AuditSoft))

	// A failing idempotency check is not "not scored yet": scoring anyway
	// could double-award, so the lookup error must come back to the caller.
	_, err := o.Process(context.Background(), cleanSession("mallory", time.Now().UTC()), game.SourceSession)
	assert.ErrorIs(t, err, lookupErr)

	_, err = inner.GetState(context.Background(), "mallory")
	assert.ErrorIs(t, err, store.ErrStateNotFound)
}

func TestProcessClosedBusStillCommits(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	b := bus.New()
	b.Close()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)), WithBus(b))

	// Publishing is best-effort: every event fails on a closed bus but the
	// committed result still comes back.
	summary, err := o.Process(context.Background(), cleanSession("niaj", now), game.SourceSession)
	require.NoError(t, err)
	assert.Equal(t, 45, summary.XP.Delta)

	state, err := st.GetState(context.Background(), "niaj")
	require.NoError(t, err)
	assert.Equal(t, 45, state.TotalXP)
}

func TestProcessPublishesEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	b := bus.New()
	defer b.Close()
	ch, cancel, err := b.Subscribe()
	require.NoError(t, err)
	defer cancel()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)), WithBus(b))

	_, err = o.Process(context.Background(), cleanSession("heidi", now), game.SourceSession)
	require.NoError(t, err)

	kinds := make(map[string]bool)
	for i := 0; i < 4; i++ {
		select {
		case event := <-ch:
			kinds[event.Kind()] = true
			assert.Equal(t, "heidi", event.User())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	assert.True(t, kinds[game.KindXPUpdated])
	assert.True(t, kinds[game.KindStreakUpdated])
	assert.True(t, kinds[game.KindAuditValidation])
	assert.True(t, kinds[game.KindRankingUpdated])
}

func TestProcessSkippedAwardOmitsXPEvent(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	b := bus.New()
	defer b.Close()
	ch, cancel, err := b.Subscribe(game.KindXPUpdated)
	require.NoError(t, err)
	defer cancel()

	o := New(st, audit.New(game.AuditSoft), WithClock(fixedClock(now)), WithBus(b))

	session := game.NewSession("ivan", 30, 0, 50)
	session.EndedAt = now
	_, err = o.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	select {
	case event := <-ch:
		t.Fatalf("unexpected XP event for a skipped award: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}
