package xp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusquest-dev/focusquest/game"
)

func TestAwardFocusSessionWithEfficiencyBonus(t *testing.T) {
	// 30 minutes at efficiency 90 with no prior XP:
	// base 30 + focus bonus 10 + efficiency bonus (90-80)/2 = 45.
	s := game.NewSession("user-1", 30, 30, 90)

	award, err := Award(s, game.SourceSession, 0)
	require.NoError(t, err)

	assert.Equal(t, 45, award.Delta)
	assert.Equal(t, 45, award.TotalXP)
	assert.Equal(t, 1, award.Level)
	assert.False(t, award.LevelUp)
	assert.False(t, award.Skipped)
}

func TestAwardTable(t *testing.T) {
	tests := []struct {
		name       string
		minutes    int
		efficiency int
		prior      int
		wantDelta  int
	}{
		{"short session, no bonuses", 10, 50, 0, 10},
		{"focus threshold exactly", 25, 80, 0, 35},
		{"just under focus threshold", 24, 80, 0, 24},
		{"efficiency bonus capped", 60, 100, 0, 80},
		{"efficiency at threshold earns nothing", 30, 80, 0, 40},
		{"efficiency 81 rounds down to zero bonus", 30, 81, 0, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := game.NewSession("user-1", tt.minutes, tt.minutes, tt.efficiency)
			award, err := Award(s, game.SourceSession, tt.prior)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDelta, award.Delta)
		})
	}
}

func TestAwardLevelUp(t *testing.T) {
	s := game.NewSession("user-1", 30, 30, 50)

	// 90 prior XP + 40 delta crosses the 100 XP boundary.
	award, err := Award(s, game.SourceSession, 90)
	require.NoError(t, err)

	assert.Equal(t, 130, award.TotalXP)
	assert.Equal(t, 2, award.Level)
	assert.True(t, award.LevelUp)
}

func TestAwardRejectsInvalidDuration(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		s := game.NewSession("user-1", 25, minutes, 50)
		_, err := Award(s, game.SourceSession, 100)
		assert.ErrorIs(t, err, ErrInvalidSession, "minutes=%d", minutes)
	}
}

func TestAwardRejectsUnknownSource(t *testing.T) {
	s := game.NewSession("user-1", 25, 25, 50)
	_, err := Award(s, game.Source("loot_box"), 0)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestSkipped(t *testing.T) {
	award := Skipped(game.SourceSession, 250)

	assert.True(t, award.Skipped)
	assert.Zero(t, award.Delta)
	assert.Equal(t, 250, award.TotalXP)
	assert.Equal(t, 3, award.Level)
	assert.False(t, award.LevelUp)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 1, Level(0))
	assert.Equal(t, 1, Level(99))
	assert.Equal(t, 2, Level(100))
	assert.Equal(t, 11, Level(1000))
	assert.Equal(t, 1, Level(-50))
}
