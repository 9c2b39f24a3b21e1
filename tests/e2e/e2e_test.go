// End-to-end scenarios driving the assembled engine: config, store, bus,
// orchestrator, badges, sweep, and the HTTP API together.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusquest-dev/focusquest"
	"github.com/focusquest-dev/focusquest/game"
	"github.com/focusquest-dev/focusquest/internal/sweep"
	"github.com/focusquest-dev/focusquest/pkg/api"
	"github.com/focusquest-dev/focusquest/pkg/store"
)

func newEngine(t *testing.T) *focusquest.Engine {
	t.Helper()
	config := focusquest.DefaultConfig()
	config.API.Enabled = false
	config.Ops.Enabled = false
	config.Sweep.Enabled = false

	engine, err := focusquest.Open(config)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func sessionOn(userID string, day time.Time, minutes, efficiency int) *game.Session {
	ended := day.Add(18 * time.Hour)
	s := game.NewSession(userID, minutes, minutes, efficiency)
	s.EndedAt = ended
	started := ended.Add(-time.Duration(minutes) * time.Minute)
	s.AppendAt(game.EventStart, "", started)
	for ts := started.Add(5 * time.Minute); ts.Before(ended); ts = ts.Add(5 * time.Minute) {
		s.AppendAt(game.EventHeartbeat, "", ts)
	}
	s.AppendAt(game.EventEnd, "", ended)
	return s
}

// A week of daily sessions: streak milestones at 3 and 7, badges granted,
// events observable on the bus.
func TestWeekOfSessions(t *testing.T) {
	engine := newEngine(t)

	events, cancel, err := engine.Bus.Subscribe(game.KindStreakUpdated)
	require.NoError(t, err)
	defer cancel()

	day0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var milestones []int
	for i := 0; i < 7; i++ {
		summary, err := engine.Process(context.Background(),
			sessionOn("alice", day0.AddDate(0, 0, i), 30, 85), game.SourceSession)
		require.NoError(t, err)
		if summary.Streak.Milestone > 0 {
			milestones = append(milestones, summary.Streak.Milestone)
		}
	}

	assert.Equal(t, []int{3, 7}, milestones)

	state, err := engine.Store.GetState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, state.CurrentStreak)
	// 30 + 10 focus + 2 efficiency per day, plus the flat streak bonus
	// granted when the streak reached a full week.
	assert.Equal(t, 7*42+2, state.TotalXP)

	held := engine.Badges.Held("alice")
	assert.Contains(t, held, "first-session")
	assert.Contains(t, held, "streak-3")
	assert.Contains(t, held, "streak-7")

	// Seven streak events were published.
	received := 0
	for received < 7 {
		select {
		case <-events:
			received++
		case <-time.After(time.Second):
			t.Fatalf("only %d streak events arrived", received)
		}
	}
}

// A gap breaks the streak but keeps best, and the earned tier survives.
func TestStreakBreakKeepsTier(t *testing.T) {
	engine := newEngine(t)

	day0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := engine.Process(context.Background(),
			sessionOn("bob", day0.AddDate(0, 0, i), 60, 90), game.SourceSession)
		require.NoError(t, err)
	}

	state, err := engine.Store.GetState(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, game.TierSilver, state.Tier, "750 XP and a 10-day streak earn silver")

	// Return after a 5 day gap.
	summary, err := engine.Process(context.Background(),
		sessionOn("bob", day0.AddDate(0, 0, 15), 30, 70), game.SourceSession)
	require.NoError(t, err)

	assert.True(t, summary.Streak.Broken)
	assert.Equal(t, 1, summary.Streak.Current)
	assert.Equal(t, 10, summary.Streak.Best)
	// Silver allows 14 inactive days; 5 does not demote.
	assert.Equal(t, game.TierSilver, summary.Ranking.Tier)
	assert.False(t, summary.Ranking.Demoted)
}

// The sweep demotes a long-idle user between sessions.
func TestSweepDemotesIdleUser(t *testing.T) {
	engine := newEngine(t)

	day0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := engine.Process(context.Background(),
			sessionOn("carol", day0.AddDate(0, 0, i), 60, 90), game.SourceSession)
		require.NoError(t, err)
	}

	state, err := engine.Store.GetState(context.Background(), "carol")
	require.NoError(t, err)
	require.Equal(t, game.TierSilver, state.Tier)

	// 20 idle days exceed silver's 14-day allowance.
	sweepDay := day0.AddDate(0, 0, 30)
	s := sweep.New(engine.Store, sweep.WithClock(func() time.Time { return sweepDay }))
	demoted, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	state, err = engine.Store.GetState(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, game.TierBronze, state.Tier)
}

// A suspicious session is flagged but still rewarded.
func TestFlaggedSessionStillRewarded(t *testing.T) {
	engine := newEngine(t)

	// A brand-new user reporting 200 minutes against a log that is two
	// heartbeats 90 minutes apart: no start, no end, one huge gap.
	ended := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	session := game.NewSession("dave", 30, 200, 100)
	session.EndedAt = ended
	session.AppendAt(game.EventHeartbeat, "", ended.Add(-90*time.Minute))
	session.AppendAt(game.EventHeartbeat, "", ended)

	summary, err := engine.Process(context.Background(), session, game.SourceSession)
	require.NoError(t, err)

	assert.False(t, summary.Audit.Valid)
	assert.Positive(t, summary.XP.Delta, "audit never blocks rewards")

	state, err := engine.Store.GetState(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, summary.XP.TotalXP, state.TotalXP)
}

// The HTTP API drives the same engine end to end.
func TestHTTPRoundTrip(t *testing.T) {
	engine := newEngine(t)
	handler := api.NewServer(0, engine, engine.Store).Handler()

	session := game.NewSession("erin", 30, 30, 90)
	body, err := json.Marshal(map[string]any{"session": session})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/complete", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary game.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 45, summary.XP.Delta)

	// The state endpoint reflects the commit.
	req = httptest.NewRequest(http.MethodGet, "/v1/users/erin/state", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var state game.UserGameState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 45, state.TotalXP)

	// And the leaderboard ranks the user.
	req = httptest.NewRequest(http.MethodGet, "/v1/leaderboard", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []store.LeaderboardEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Entries)
	assert.Equal(t, "erin", resp.Entries[0].UserID)
}
