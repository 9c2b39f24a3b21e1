package audit

import "github.com/focusquest-dev/focusquest/game"

// Forgiveness component caps. The three components accrue independently and
// their sum is capped so forgiveness never erases more than half the score.
const (
	TechnicalCap      = 0.25
	UserExperienceCap = 0.20
	ContextualCap     = 0.20
	TotalCap          = 0.50
)

// Per-pattern technical-issue credits: patterns that a flaky client or
// network plausibly explains.
var technicalCredit = map[game.Pattern]float64{
	game.PatternMissingStart:       0.15,
	game.PatternMissingEnd:         0.10,
	game.PatternLargeTimeGap:       0.05,
	game.PatternExtendedInactivity: 0.08,
}

// Per-pattern user-experience credits: patterns that ordinary, honest study
// behavior plausibly explains.
var userExperienceCredit = map[game.Pattern]float64{
	game.PatternVeryShortDuration:  0.10,
	game.PatternIrregularHeartbeat: 0.08,
	game.PatternExtendedDuration:   0.05,
}

// Contextual credits read the user's pre-session history: established users
// and clean or low-severity sessions earn the benefit of the doubt.
const (
	contextNoFindings   = 0.10
	contextLowSeverity  = 0.05
	contextLongStreak   = 0.05
	contextHighXP       = 0.05
	contextStreakFloor  = 7
	contextTotalXPFloor = 5000
)

// forgiveness computes the total discount fraction for a finding set and
// user history. The result is always in [0, TotalCap].
func forgiveness(findings []game.PatternFinding, hist History) float64 {
	var technical, experience float64
	hasLow := false
	for _, f := range findings {
		technical += technicalCredit[f.Pattern]
		experience += userExperienceCredit[f.Pattern]
		if f.Severity == game.SeverityLow {
			hasLow = true
		}
	}
	if technical > TechnicalCap {
		technical = TechnicalCap
	}
	if experience > UserExperienceCap {
		experience = UserExperienceCap
	}

	var contextual float64
	if len(findings) == 0 {
		contextual += contextNoFindings
	}
	if hasLow {
		contextual += contextLowSeverity
	}
	if hist.CurrentStreak >= contextStreakFloor {
		contextual += contextLongStreak
	}
	if hist.TotalXP >= contextTotalXPFloor {
		contextual += contextHighXP
	}
	if contextual > ContextualCap {
		contextual = ContextualCap
	}

	total := technical + experience + contextual
	if total > TotalCap {
		total = TotalCap
	}
	return total
}
