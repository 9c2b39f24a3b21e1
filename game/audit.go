package game

// Pattern identifies a suspicious shape in a session or its event log.
type Pattern string

const (
	PatternMissingStart       Pattern = "missing-start-event"
	PatternMissingEnd         Pattern = "missing-end-event"
	PatternLargeTimeGap       Pattern = "large-time-gap"
	PatternIrregularHeartbeat Pattern = "irregular-heartbeat"
	PatternNoEvents           Pattern = "no-events"
	PatternSuspiciousDuration Pattern = "suspicious-duration"
	PatternExtendedInactivity Pattern = "extended-inactivity"
	PatternVeryShortDuration  Pattern = "very-short-duration"
	PatternExtendedDuration   Pattern = "extended-duration"
)

// Severity buckets a finding by its weight.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskLevel is the overall risk classification of a session, derived from
// finding severities rather than from the numeric score.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AuditMode selects the validity threshold.
type AuditMode string

const (
	// AuditSoft is the default, non-punitive mode (threshold 70).
	AuditSoft AuditMode = "soft"
	// AuditStrict lowers the threshold to 50.
	AuditStrict AuditMode = "strict"
)

// PatternFinding is one triggered pattern with its contribution to the
// suspicion score and a human-readable explanation.
type PatternFinding struct {
	// Pattern identifies what was detected.
	Pattern Pattern `json:"pattern"`
	// Severity is derived from Impact (>=25 high, >=15 medium, else low).
	Severity Severity `json:"severity"`
	// Impact is the weight this finding adds to the base score.
	Impact int `json:"impact"`
	// Detail describes what was observed, with concrete numbers.
	Detail string `json:"detail"`
	// Causes lists plausible innocent explanations.
	Causes []string `json:"causes,omitempty"`
	// ForgivenessEligible is always true for the soft audit: every finding
	// can be discounted, none hard-fails a session.
	ForgivenessEligible bool `json:"forgivenessEligible"`
}

// AuditReport is the soft audit engine's verdict for one session.
// It is advisory: a failed verdict never blocks XP, streak, or ranking.
type AuditReport struct {
	// SessionID identifies the audited session.
	SessionID string `json:"sessionId"`
	// Mode is the mode the audit ran in.
	Mode AuditMode `json:"mode"`
	// BaseScore is the sum of triggered pattern weights, capped at 100.
	BaseScore float64 `json:"baseScore"`
	// Forgiveness is the total discount fraction, in [0, 0.50].
	Forgiveness float64 `json:"forgiveness"`
	// AdjustedScore is BaseScore * (1 - Forgiveness).
	AdjustedScore float64 `json:"adjustedScore"`
	// Threshold is the mode-dependent validity cutoff.
	Threshold float64 `json:"threshold"`
	// Valid reports AdjustedScore <= Threshold.
	Valid bool `json:"valid"`
	// RiskLevel is derived from finding severities.
	RiskLevel RiskLevel `json:"riskLevel"`
	// Findings lists every triggered pattern in detection order.
	Findings []PatternFinding `json:"findings,omitempty"`
	// Recommendations are encouraging, never accusatory, one per finding
	// plus a general line at medium or high risk.
	Recommendations []string `json:"recommendations,omitempty"`
	// Degraded is set when the event log was malformed and the audit fell
	// back to an advisory no-op (BaseScore 0, RiskMinimal).
	Degraded bool `json:"degraded,omitempty"`
}
