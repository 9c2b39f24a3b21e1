package game

// Event is a discrete notification published after a session is scored.
// Each implementation is a tagged variant; Kind returns its tag so bus
// subscribers can filter by event type without reflection.
type Event interface {
	Kind() string
	// User returns the user the event concerns.
	User() string
}

// Event kind tags.
const (
	KindXPUpdated       = "xp_updated"
	KindStreakUpdated   = "streak_updated"
	KindAuditValidation = "audit_validation"
	KindRankingUpdated  = "ranking_updated"
	KindBadgeUnlocked   = "badge_unlocked"
)

// XPUpdated announces an XP award.
type XPUpdated struct {
	UserID        string `json:"userId"`
	AmountAwarded int    `json:"amountAwarded"`
	TotalXP       int    `json:"totalXp"`
	Level         int    `json:"level"`
	Source        Source `json:"source"`
	LevelUp       bool   `json:"levelUp"`
}

func (e XPUpdated) Kind() string { return KindXPUpdated }
func (e XPUpdated) User() string { return e.UserID }

// StreakUpdated announces a streak transition.
type StreakUpdated struct {
	UserID           string  `json:"userId"`
	CurrentStreak    int     `json:"currentStreak"`
	BestStreak       int     `json:"bestStreak"`
	StreakBroken     bool    `json:"streakBroken"`
	MilestoneReached int     `json:"milestoneReached,omitempty"`
	StreakMultiplier float64 `json:"streakMultiplier"`
	StreakBonusXP    int     `json:"streakBonusXp"`
}

func (e StreakUpdated) Kind() string { return KindStreakUpdated }
func (e StreakUpdated) User() string { return e.UserID }

// AuditValidation announces the soft audit verdict for a session.
type AuditValidation struct {
	UserID             string    `json:"userId"`
	SessionID          string    `json:"sessionId"`
	IsValid            bool      `json:"isValid"`
	ValidationMode     AuditMode `json:"validationMode"`
	BaseScore          float64   `json:"baseScore"`
	AdjustedScore      float64   `json:"adjustedScore"`
	ForgivenessApplied float64   `json:"forgivenessApplied"`
	Threshold          float64   `json:"threshold"`
	Message            string    `json:"message"`
}

func (e AuditValidation) Kind() string { return KindAuditValidation }
func (e AuditValidation) User() string { return e.UserID }

// RankingUpdated announces a tier evaluation.
type RankingUpdated struct {
	UserID          string  `json:"userId"`
	Tier            Tier    `json:"tier"`
	Score           float64 `json:"score"`
	ProgressPercent float64 `json:"progressPercent"`
	Promoted        bool    `json:"promoted"`
	Demoted         bool    `json:"demoted"`
	NextTier        Tier    `json:"nextTier,omitempty"`
}

func (e RankingUpdated) Kind() string { return KindRankingUpdated }
func (e RankingUpdated) User() string { return e.UserID }

// Badge describes an unlockable badge.
type Badge struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BadgeUnlocked announces a badge grant.
type BadgeUnlocked struct {
	UserID      string `json:"userId"`
	Badge       Badge  `json:"badge"`
	TotalBadges int    `json:"totalBadges"`
}

func (e BadgeUnlocked) Kind() string { return KindBadgeUnlocked }
func (e BadgeUnlocked) User() string { return e.UserID }
