// Package audit implements the soft anti-cheat audit: it scans a session's
// event log and metadata for suspicious patterns, sums their weights into a
// suspicion score, discounts the score by a forgiveness fraction derived
// from the findings and the user's history, and renders a non-blocking
// validity verdict.
//
// The audit is advisory by construction. A flagged session still receives
// XP, streak, and ranking updates; only the verdict and the recommendation
// text differ. Malformed event logs degrade to a clean advisory report with
// a logged warning rather than an error.
package audit

import (
	"log"

	"github.com/focusquest-dev/focusquest/game"
)

// Validity thresholds per mode.
const (
	SoftThreshold   = 70
	StrictThreshold = 50
	// MaxBaseScore caps the summed pattern weights.
	MaxBaseScore = 100
)

// History is the slice of the user's pre-session aggregate the audit reads
// for contextual forgiveness. The orchestrator passes the OLD state, never
// values mutated by sibling engines in the same pass.
type History struct {
	CurrentStreak int
	TotalXP       int
}

// Engine evaluates sessions in a fixed mode. The zero value runs in soft mode.
type Engine struct {
	Mode game.AuditMode
}

// New returns an engine for the given mode, defaulting to soft.
func New(mode game.AuditMode) *Engine {
	if mode != game.AuditStrict {
		mode = game.AuditSoft
	}
	return &Engine{Mode: mode}
}

// Threshold returns the validity cutoff for the engine's mode.
func (e *Engine) Threshold() float64 {
	if e.Mode == game.AuditStrict {
		return StrictThreshold
	}
	return SoftThreshold
}

// Evaluate audits one session against the user's prior history.
// It never returns an error: detection failure on a malformed log degrades
// to a minimal-risk report with the Degraded flag set.
func (e *Engine) Evaluate(s *game.Session, hist History) game.AuditReport {
	report := game.AuditReport{
		SessionID: s.ID,
		Mode:      e.Mode,
		Threshold: e.Threshold(),
		RiskLevel: game.RiskMinimal,
		Valid:     true,
	}

	if !s.LogOrdered() {
		log.Printf("Warning: session %s has a malformed event log (timestamp regression), audit degraded to advisory", s.ID)
		report.Degraded = true
		return report
	}

	report.Findings = detect(s)

	for _, f := range report.Findings {
		report.BaseScore += float64(f.Impact)
	}
	if report.BaseScore > MaxBaseScore {
		report.BaseScore = MaxBaseScore
	}

	report.Forgiveness = forgiveness(report.Findings, hist)
	// Forgiveness is a multiplicative discount, not a flat subtraction, so
	// a high-risk session can never be discounted to zero.
	report.AdjustedScore = report.BaseScore * (1 - report.Forgiveness)
	report.Valid = report.AdjustedScore <= report.Threshold
	report.RiskLevel = riskLevel(report.Findings)
	report.Recommendations = recommendations(report.Findings, report.RiskLevel)

	return report
}

// riskLevel derives the overall risk from finding severities. The ladder is
// evaluated in this exact precedence order; the numeric score plays no part.
func riskLevel(findings []game.PatternFinding) game.RiskLevel {
	var high, medium int
	for _, f := range findings {
		switch f.Severity {
		case game.SeverityHigh:
			high++
		case game.SeverityMedium:
			medium++
		}
	}

	switch {
	case high >= 2:
		return game.RiskCritical
	case high >= 1:
		return game.RiskHigh
	case medium >= 2:
		return game.RiskMedium
	case medium >= 1 || len(findings) > 0:
		return game.RiskLow
	default:
		return game.RiskMinimal
	}
}
