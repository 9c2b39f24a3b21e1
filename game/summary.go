package game

import "time"

// XPAward is the XP engine's output for one session.
type XPAward struct {
	// Delta is the XP granted for this session (0 when the award was skipped).
	Delta int `json:"delta"`
	// TotalXP is the cumulative XP after the award.
	TotalXP int `json:"totalXp"`
	// Level is derived from TotalXP.
	Level int `json:"level"`
	// LevelUp reports whether the award crossed a level boundary.
	LevelUp bool `json:"levelUp"`
	// Source tags where the award came from.
	Source Source `json:"source"`
	// Skipped is set when the session was rejected (zero or negative
	// duration) and no XP was granted.
	Skipped bool `json:"skipped,omitempty"`
}

// StreakStatus is the streak engine's output for one session.
type StreakStatus struct {
	// Current is the streak length after the transition.
	Current int `json:"current"`
	// Best is the all-time best streak.
	Best int `json:"best"`
	// Delta is Current minus the prior streak length.
	Delta int `json:"delta"`
	// Broken reports that the streak was reset by inactivity.
	Broken bool `json:"broken"`
	// PriorStreak is the streak length before a break (0 otherwise).
	PriorStreak int `json:"priorStreak,omitempty"`
	// DaysInactive is the gap that caused a break (0 otherwise).
	DaysInactive int `json:"daysInactive,omitempty"`
	// Milestone is the milestone value reached this transition, or 0.
	// Milestones fire exactly once, on the transition that reaches them.
	Milestone int `json:"milestone,omitempty"`
	// Multiplier is the streak bonus multiplier, in [1.0, 2.0].
	Multiplier float64 `json:"multiplier"`
	// BonusXP is the flat streak bonus, capped at 50.
	BonusXP int `json:"bonusXp"`
}

// RankingStatus is the ranking engine's output for one evaluation.
type RankingStatus struct {
	// Tier is the tier after the evaluation.
	Tier Tier `json:"tier"`
	// Label is the tier's display label.
	Label string `json:"label"`
	// Score is the composite score blending normalized XP and streak.
	Score float64 `json:"score"`
	// ProgressPercent is progress toward the next tier, in [0, 100].
	ProgressPercent float64 `json:"progressPercent"`
	// Promoted and Demoted report tier movement in this evaluation.
	// Demotion drops exactly one tier per cycle.
	Promoted bool `json:"promoted"`
	Demoted  bool `json:"demoted"`
	// NextTier is the tier above, or "" at the max tier.
	NextTier Tier `json:"nextTier,omitempty"`
	// AtMaxTier short-circuits progress to 100.
	AtMaxTier bool `json:"atMaxTier"`
}

// Notifications is the flag-set external UI collaborators key off.
type Notifications struct {
	XPGained         bool `json:"xp_gained"`
	StreakMaintained bool `json:"streak_maintained"`
	StreakMilestone  bool `json:"streak_milestone"`
	RankingPromoted  bool `json:"ranking_promoted"`
	ConfettiTrigger  bool `json:"confetti_trigger"`
}

// SessionSummary is the orchestrator's single output for one scored session.
// Re-processing a scored session returns the stored summary unchanged.
type SessionSummary struct {
	// SessionID and UserID identify what was scored.
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	// ScoredAt is when the pipeline committed the result.
	ScoredAt time.Time `json:"scoredAt"`

	XP      XPAward       `json:"xp"`
	Streak  StreakStatus  `json:"streak"`
	Audit   AuditReport   `json:"audit"`
	Ranking RankingStatus `json:"ranking"`

	Notify Notifications `json:"notify"`
}
