// Package xp converts a completed session into an experience point award
// and derives the user's level from cumulative XP.
package xp

import (
	"errors"
	"fmt"

	"github.com/focusquest-dev/focusquest/game"
)

// Scoring constants. XPPerLevel is the single canonical level constant;
// nothing else in the repository may re-derive it.
const (
	// XPPerMinute is the base award per actual minute studied.
	XPPerMinute = 1
	// FocusSessionMinutes is the duration at which the focus bonus applies.
	FocusSessionMinutes = 25
	// FocusBonus is the flat bonus for a full focus session.
	FocusBonus = 10
	// EfficiencyThreshold is the efficiency above which a bonus accrues.
	EfficiencyThreshold = 80
	// EfficiencyBonusCap caps the efficiency bonus.
	EfficiencyBonusCap = 10
	// XPPerLevel is the XP span of one level.
	XPPerLevel = 100
)

var (
	// ErrInvalidSession is returned for sessions with zero or negative
	// duration. The orchestrator skips the award but still audits the
	// session; a zero-duration session is itself a suspicious pattern.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUnknownSource is returned for source tags outside the enumerated set.
	ErrUnknownSource = errors.New("unknown xp source")
)

// Award computes the XP delta for a session and the resulting total and
// level. It is a pure function of (session, source, priorTotal) and never
// touches stored state.
func Award(s *game.Session, source game.Source, priorTotal int) (game.XPAward, error) {
	if !source.Valid() {
		return game.XPAward{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if s.ActualMinutes <= 0 {
		return game.XPAward{}, fmt.Errorf("%w: duration %d minutes", ErrInvalidSession, s.ActualMinutes)
	}

	delta := s.ActualMinutes * XPPerMinute
	if s.ActualMinutes >= FocusSessionMinutes {
		delta += FocusBonus
	}
	if s.Efficiency > EfficiencyThreshold {
		bonus := (s.Efficiency - EfficiencyThreshold) / 2
		if bonus > EfficiencyBonusCap {
			bonus = EfficiencyBonusCap
		}
		delta += bonus
	}

	total := priorTotal + delta
	return game.XPAward{
		Delta:   delta,
		TotalXP: total,
		Level:   Level(total),
		LevelUp: Level(total) > Level(priorTotal),
		Source:  source,
	}, nil
}

// Skipped returns the award recorded when a session is rejected: no delta,
// prior totals carried through unchanged.
func Skipped(source game.Source, priorTotal int) game.XPAward {
	return game.XPAward{
		TotalXP: priorTotal,
		Level:   Level(priorTotal),
		Source:  source,
		Skipped: true,
	}
}

// Level derives the level for a cumulative XP total. Levels start at 1.
func Level(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}
