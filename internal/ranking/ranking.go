// Package ranking classifies users into tiers from their XP and streak,
// computes a composite score and progress toward the next tier, and applies
// the promotion and inactivity-demotion rules.
package ranking

import "github.com/focusquest-dev/focusquest/game"

// Composite score weights and normalization ceilings. XP dominates.
const (
	XPWeight      = 0.7
	StreakWeight  = 0.3
	XPCeiling     = 15000
	StreakCeiling = 30
)

// demotionLimitDays is the per-tier inactivity allowance. Exceeding it drops
// the user exactly one tier per evaluation cycle. Bronze never demotes.
var demotionLimitDays = map[game.Tier]int{
	game.TierSilver:   14,
	game.TierGold:     10,
	game.TierPlatinum: 7,
	game.TierDiamond:  5,
}

// CompositeScore blends normalized XP and streak into [0, 1].
func CompositeScore(xp, streak int) float64 {
	return clamp01(float64(xp)/XPCeiling)*XPWeight + clamp01(float64(streak)/StreakCeiling)*StreakWeight
}

// AssignTier walks the tier table from diamond down and returns the first
// tier whose XP and streak floors are both met. Default bronze. The result
// is monotone: raising xp or streak never lowers the tier.
func AssignTier(xp, streak int) game.Tier {
	for i := len(game.Tiers) - 1; i >= 0; i-- {
		info := game.Tiers[i]
		if xp >= info.MinXP && streak >= info.MinStreak {
			return info.Name
		}
	}
	return game.TierBronze
}

// Demote returns the tier one step below t when daysInactive exceeds the
// tier's allowance, otherwise t unchanged. Never drops more than one tier.
func Demote(t game.Tier, daysInactive int) (game.Tier, bool) {
	limit, ok := demotionLimitDays[t]
	if !ok || daysInactive <= limit {
		return t, false
	}
	return game.Tiers[game.TierIndex(t)-1].Name, true
}

// Evaluate runs one ranking cycle for a user: promotion against the earned
// tier for the new stats, then the independent inactivity-demotion check.
// priorTier is the tier from the pre-session aggregate and daysInactive the
// gap measured before this session, so a user returning from a long break
// is demoted at most one tier regardless of how far their streak fell.
func Evaluate(xp, streak int, priorTier game.Tier, daysInactive int) game.RankingStatus {
	status := game.RankingStatus{
		Tier:  priorTier,
		Score: CompositeScore(xp, streak),
	}

	earned := AssignTier(xp, streak)
	switch {
	case earned.Outranks(priorTier):
		status.Tier = earned
		status.Promoted = true
	default:
		// An earned tier below the prior one is not a demotion by itself:
		// a broken streak alone never strips an earned tier. Only the
		// inactivity rule moves users down, one step per cycle.
		if demoted, ok := Demote(priorTier, daysInactive); ok {
			status.Tier = demoted
			status.Demoted = true
		}
	}

	status.Label = game.TierTable(status.Tier).Label
	status.NextTier = game.NextTier(status.Tier)
	status.AtMaxTier = status.NextTier == ""
	status.ProgressPercent = Progress(xp, streak, status.Tier)

	return status
}

// Progress returns progress toward the next tier as a percentage in
// [0, 100]: 70% XP-band progress blended with 30% streak-band progress.
// At the max tier progress is 100.
func Progress(xp, streak int, tier game.Tier) float64 {
	info := game.TierTable(tier)
	if info.PromotionXP == 0 {
		return 100
	}

	xpProgress := bandProgress(xp, info.MinXP, info.PromotionXP)
	streakProgress := bandProgress(streak, info.MinStreak, info.PromotionStreak)

	p := xpProgress*XPWeight + streakProgress*StreakWeight
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// bandProgress places value within [floor, ceiling] as a percentage,
// clamped to [0, 100].
func bandProgress(value, floor, ceiling int) float64 {
	if ceiling <= floor {
		return 100
	}
	p := float64(value-floor) / float64(ceiling-floor) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
