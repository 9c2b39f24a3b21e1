package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/pkg/bus"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

func seedUser(t *testing.T, st store.Store, userID string, tier game.Tier, lastActive time.Time) {
	t.Helper()
	state := game.NewUserGameState(userID)
	state.Tier = tier
	state.TotalXP = 3000
	state.CurrentStreak = 0
	state.LastActive = lastActive
	require.NoError(t, st.SaveState(context.Background(), state))
}

func TestRunOnceDemotesInactiveUsers(t *testing.T) {
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	// Gold allows 10 inactive days.
	seedUser(t, st, "idle-gold", game.TierGold, now.AddDate(0, 0, -11))
	seedUser(t, st, "active-gold", game.TierGold, now.AddDate(0, 0, -2))
	seedUser(t, st, "idle-bronze", game.TierBronze, now.AddDate(0, 0, -60))

	s := New(st, WithClock(func() time.Time { return now }))
	demoted, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	got, err := st.GetState(context.Background(), "idle-gold")
	require.NoError(t, err)
	assert.Equal(t, game.TierSilver, got.Tier, "demotion drops exactly one tier")

	got, err = st.GetState(context.Background(), "active-gold")
	require.NoError(t, err)
	assert.Equal(t, game.TierGold, got.Tier)

	got, err = st.GetState(context.Background(), "idle-bronze")
	require.NoError(t, err)
	assert.Equal(t, game.TierBronze, got.Tier, "bronze never demotes")
}

func TestRunOnceOneTierPerCycle(t *testing.T) {
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	// Inactive long enough to fail every tier's allowance.
	seedUser(t, st, "ghost", game.TierDiamond, now.AddDate(0, 0, -100))

	s := New(st, WithClock(func() time.Time { return now }))

	tiers := []game.Tier{game.TierPlatinum, game.TierGold, game.TierSilver, game.TierBronze}
	for _, want := range tiers {
		_, err := s.RunOnce(context.Background())
		require.NoError(t, err)

		got, err := st.GetState(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Equal(t, want, got.Tier)
	}

	// Bronze is the floor.
	demoted, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, demoted)
}

func TestRunOncePublishesDemotions(t *testing.T) {
	now := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	defer st.Close()

	b := bus.New()
	defer b.Close()
	ch, cancel, err := b.Subscribe(game.KindRankingUpdated)
	require.NoError(t, err)
	defer cancel()

	seedUser(t, st, "idle-silver", game.TierSilver, now.AddDate(0, 0, -20))

	s := New(st, WithClock(func() time.Time { return now }), WithBus(b))
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	select {
	case event := <-ch:
		update, ok := event.(game.RankingUpdated)
		require.True(t, ok)
		assert.Equal(t, "idle-silver", update.UserID)
		assert.Equal(t, game.TierBronze, update.Tier)
		assert.True(t, update.Demoted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for demotion event")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()

	s := New(st, WithSchedule("not a schedule"))
	assert.Error(t, s.Start())
}
