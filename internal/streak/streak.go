// Package streak implements the daily streak state machine: continue on
// consecutive days, hold on same-day repeats, reset after a gap, and fire
// milestone notifications exactly once.
package streak

import (
	"time"

	"github.com/focusquest-dev/focusquest/game"
)

// Milestones is the fixed set of streak lengths that trigger a one-time
// milestone notification.
var Milestones = []int{3, 7, 14, 30, 60, 100}

const (
	// MultiplierStep is the per-day multiplier increment.
	MultiplierStep = 0.1
	// MultiplierCap caps the streak multiplier.
	MultiplierCap = 2.0
	// BonusPerWeek is the flat bonus XP granted per full streak week.
	BonusPerWeek = 2
	// BonusCap caps the flat streak bonus.
	BonusCap = 50
)

// Advance applies one session to the streak state machine. Dates are
// compared at UTC calendar-day granularity; lastActive.IsZero() means the
// user has never completed a session.
//
// A milestone fires only on the transition where the streak first reaches
// the milestone value. Same-day repeat sessions leave the count unchanged
// and therefore never refire a milestone.
func Advance(lastActive, today time.Time, current, best int) game.StreakStatus {
	st := game.StreakStatus{Current: current, Best: best}

	switch {
	case lastActive.IsZero():
		// First ever session.
		st.Current = 1
		st.Delta = 1
	default:
		days := daysBetween(lastActive, today)
		switch {
		case days == 0:
			// Repeat session on the same day: no streak change, still
			// XP-eligible.
		case days == 1:
			st.Current = current + 1
			st.Delta = 1
		default:
			st.Broken = true
			st.PriorStreak = current
			st.DaysInactive = days
			st.Current = 1
			st.Delta = 1 - current
		}
	}

	if st.Current > st.Best {
		st.Best = st.Current
	}

	if st.Delta > 0 {
		for _, m := range Milestones {
			if st.Current == m {
				st.Milestone = m
				break
			}
		}
	}

	st.Multiplier = 1 + float64(st.Current)*MultiplierStep
	if st.Multiplier > MultiplierCap {
		st.Multiplier = MultiplierCap
	}

	st.BonusXP = st.Current / 7 * BonusPerWeek
	if st.BonusXP > BonusCap {
		st.BonusXP = BonusCap
	}

	return st
}

// daysBetween returns whole UTC calendar days from a to b, never negative.
func daysBetween(a, b time.Time) int {
	days := int(dayOf(b).Sub(dayOf(a)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
