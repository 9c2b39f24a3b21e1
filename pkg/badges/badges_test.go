package badges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/pkg/bus"
)

func summaryFor(userID string, xpDelta, totalXP, streak int, tier game.Tier) *game.SessionSummary {
	return &game.SessionSummary{
		SessionID: "sess-" + userID,
		UserID:    userID,
		XP: game.XPAward{
			Delta:   xpDelta,
			TotalXP: totalXP,
			Level:   totalXP/100 + 1,
		},
		Streak:  game.StreakStatus{Current: streak, Best: streak},
		Ranking: game.RankingStatus{Tier: tier},
	}
}

func TestEvaluateGrantsOnce(t *testing.T) {
	e := NewEvaluator(nil, nil)

	s := summaryFor("alice", 45, 45, 1, game.TierBronze)
	first := e.Evaluate(s)
	require.Len(t, first, 1)
	assert.Equal(t, "first-session", first[0].ID)

	// Same summary again: nothing new.
	assert.Empty(t, e.Evaluate(s))
}

func TestEvaluateMultipleUnlocks(t *testing.T) {
	e := NewEvaluator(nil, nil)

	s := summaryFor("bob", 45, 12000, 30, game.TierPlatinum)
	unlocked := e.Evaluate(s)

	ids := make(map[string]bool)
	for _, b := range unlocked {
		ids[b.ID] = true
	}
	assert.True(t, ids["first-session"])
	assert.True(t, ids["streak-3"])
	assert.True(t, ids["streak-7"])
	assert.True(t, ids["streak-30"])
	assert.True(t, ids["xp-10000"])
	assert.True(t, ids["level-10"])
	assert.True(t, ids["tier-gold"], "gold badge covers higher tiers too")
	assert.False(t, ids["tier-diamond"])
}

func TestEvaluateComebackBadge(t *testing.T) {
	e := NewEvaluator(nil, nil)

	s := summaryFor("carol", 30, 500, 1, game.TierBronze)
	s.Streak.Broken = true
	s.Streak.PriorStreak = 10

	unlocked := e.Evaluate(s)
	ids := make(map[string]bool)
	for _, b := range unlocked {
		ids[b.ID] = true
	}
	assert.True(t, ids["comeback"])
}

func TestEvaluatePublishesBadgeUnlocked(t *testing.T) {
	b := bus.New()
	defer b.Close()
	ch, cancel, err := b.Subscribe(game.KindBadgeUnlocked)
	require.NoError(t, err)
	defer cancel()

	e := NewEvaluator(nil, b)
	e.Evaluate(summaryFor("dave", 45, 45, 1, game.TierBronze))

	select {
	case event := <-ch:
		unlock, ok := event.(game.BadgeUnlocked)
		require.True(t, ok)
		assert.Equal(t, "dave", unlock.UserID)
		assert.Equal(t, "first-session", unlock.Badge.ID)
		assert.Equal(t, 1, unlock.TotalBadges)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for badge event")
	}
}

func TestHeld(t *testing.T) {
	e := NewEvaluator(nil, nil)
	e.Evaluate(summaryFor("erin", 45, 45, 3, game.TierBronze))

	held := e.Held("erin")
	assert.Contains(t, held, "first-session")
	assert.Contains(t, held, "streak-3")
	assert.Empty(t, e.Held("nobody"))
}
