package game

import "time"

// UserGameState is the per-user aggregate the scoring pipeline reads and
// writes. It is mutated only by the orchestrator's commit; engines receive
// copies of the fields they need and never touch stored state.
type UserGameState struct {
	// UserID identifies the owner.
	UserID string `json:"userId"`
	// TotalXP is the cumulative experience point counter (never decreases).
	TotalXP int `json:"totalXp"`
	// Level is derived from TotalXP and is at least 1.
	Level int `json:"level"`
	// CurrentStreak is the count of consecutive active days.
	CurrentStreak int `json:"currentStreak"`
	// BestStreak is the longest streak ever reached (>= CurrentStreak).
	BestStreak int `json:"bestStreak"`
	// LastActive is the date of the most recent qualifying session.
	// Zero for users who have never completed a session.
	LastActive time.Time `json:"lastActive"`
	// Tier is the current ranking tier.
	Tier Tier `json:"tier"`
	// UpdatedAt is when the state was last committed.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserGameState returns the zero aggregate for a user with no history.
func NewUserGameState(userID string) *UserGameState {
	return &UserGameState{
		UserID: userID,
		Level:  1,
		Tier:   TierBronze,
	}
}

// DaysInactive returns the number of whole UTC days between LastActive and
// today, or 0 for users with no history.
func (s *UserGameState) DaysInactive(today time.Time) int {
	if s.LastActive.IsZero() {
		return 0
	}
	days := int(dayOf(today).Sub(dayOf(s.LastActive)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Clone returns a deep copy. The orchestrator evaluates engines against a
// clone so a failed commit leaves the loaded state untouched.
func (s *UserGameState) Clone() *UserGameState {
	clone := *s
	return &clone
}

// dayOf truncates a time to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
