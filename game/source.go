package game

// Source tags where an XP award came from.
type Source string

const (
	SourceSession     Source = "session"
	SourceStreak      Source = "streak"
	SourceDailyBonus  Source = "daily_bonus"
	SourceMilestone   Source = "milestone"
	SourceAchievement Source = "achievement"
	SourceAdmin       Source = "admin"
	SourceCorrection  Source = "correction"
	SourceReferral    Source = "referral"
)

// Sources lists every valid source tag.
var Sources = []Source{
	SourceSession,
	SourceStreak,
	SourceDailyBonus,
	SourceMilestone,
	SourceAchievement,
	SourceAdmin,
	SourceCorrection,
	SourceReferral,
}

// Valid reports whether s is one of the enumerated source tags.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}
