package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/focusquest-dev/focusquest/game"
)

// Pattern weights. The base suspicion score is the sum of triggered weights.
const (
	WeightMissingStart       = 30
	WeightNoEvents           = 50
	WeightMissingEnd         = 25
	WeightExtendedInactivity = 25
	WeightIrregularHeartbeat = 20
	WeightSuspiciousDuration = 20
	WeightLargeTimeGap       = 15
	WeightExtendedDuration   = 15
	WeightVeryShortDuration  = 10
)

// Detection constants.
const (
	// LargeGapThreshold is the consecutive-event gap that flags a session.
	LargeGapThreshold = 30 * time.Minute
	// InactivityFraction flags sessions whose longest gap exceeds this
	// share of the total event-log span.
	InactivityFraction = 0.5
	// HeartbeatSpreadFactor flags heartbeat interval sets whose maximum
	// exceeds this multiple of the median.
	HeartbeatSpreadFactor = 3
	// DurationSlackMinutes and DurationSlackFraction bound the accepted
	// mismatch between reported minutes and the event-log span.
	DurationSlackMinutes  = 10
	DurationSlackFraction = 0.25
	// OverrunFactor flags sessions running far past their plan.
	OverrunFactor = 3
	// ExtendedMinutes and VeryShortMinutes bound plausible durations.
	ExtendedMinutes  = 240
	VeryShortMinutes = 5
)

// severityFor buckets a weight: >=25 high, >=15 medium, else low.
func severityFor(weight int) game.Severity {
	switch {
	case weight >= 25:
		return game.SeverityHigh
	case weight >= 15:
		return game.SeverityMedium
	default:
		return game.SeverityLow
	}
}

func finding(p game.Pattern, weight int, detail string, causes ...string) game.PatternFinding {
	return game.PatternFinding{
		Pattern:             p,
		Severity:            severityFor(weight),
		Impact:              weight,
		Detail:              detail,
		Causes:              causes,
		ForgivenessEligible: true,
	}
}

// detect scans a session for the nine patterns and returns the triggered
// findings in a fixed detection order. The caller guarantees the log is
// ordered; malformed logs never reach detection.
func detect(s *game.Session) []game.PatternFinding {
	var findings []game.PatternFinding

	if len(s.Events) == 0 {
		// An empty log is exclusive of the other event-log patterns: there
		// is nothing to scan for gaps or heartbeats. The metadata-driven
		// duration patterns below still run.
		findings = append(findings, finding(game.PatternNoEvents, WeightNoEvents,
			"session has no events at all",
			"the timer client lost connectivity for the whole session",
			"the session was created through an external integration"))
	} else {
		if !s.HasEvent(game.EventStart) {
			findings = append(findings, finding(game.PatternMissingStart, WeightMissingStart,
				"event log has no start event",
				"the app was killed before the start event flushed",
				"the session resumed from a restored device state"))
		}
		if !s.HasEvent(game.EventEnd) {
			findings = append(findings, finding(game.PatternMissingEnd, WeightMissingEnd,
				"event log has no end event",
				"the device went offline before the session closed",
				"the app crashed near the end of the session"))
		}
		if gap := largestGap(s.Events); gap > LargeGapThreshold {
			findings = append(findings, finding(game.PatternLargeTimeGap, WeightLargeTimeGap,
				fmt.Sprintf("largest gap between events is %s", gap.Round(time.Second)),
				"the device slept mid-session",
				"a long break without pausing the timer"))
		}
		if span := s.Span(); span > 0 {
			if gap := largestGap(s.Events); float64(gap) > InactivityFraction*float64(span) {
				findings = append(findings, finding(game.PatternExtendedInactivity, WeightExtendedInactivity,
					fmt.Sprintf("session was idle for %s of a %s span", gap.Round(time.Second), span.Round(time.Second)),
					"the session was left running unattended",
					"heartbeats were dropped by a flaky network"))
			}
		}
		if spread, median, ok := heartbeatSpread(s.Events); ok && spread > HeartbeatSpreadFactor*median {
			findings = append(findings, finding(game.PatternIrregularHeartbeat, WeightIrregularHeartbeat,
				fmt.Sprintf("heartbeat intervals vary from a median of %s up to %s",
					time.Duration(median).Round(time.Second), time.Duration(spread).Round(time.Second)),
				"the client throttled heartbeats in the background",
				"intermittent connectivity delayed heartbeat delivery"))
		}
		if suspicious, detail := suspiciousDuration(s); suspicious {
			findings = append(findings, finding(game.PatternSuspiciousDuration, WeightSuspiciousDuration,
				detail,
				"the reported duration was entered manually",
				"clock drift between the client and the server"))
		}
	}

	if s.ActualMinutes > ExtendedMinutes {
		findings = append(findings, finding(game.PatternExtendedDuration, WeightExtendedDuration,
			fmt.Sprintf("session lasted %d minutes", s.ActualMinutes),
			"a genuine marathon study day",
			"the timer was never stopped"))
	}
	if s.ActualMinutes < VeryShortMinutes {
		findings = append(findings, finding(game.PatternVeryShortDuration, WeightVeryShortDuration,
			fmt.Sprintf("session lasted only %d minutes", s.ActualMinutes),
			"an accidental session start",
			"a quick check-in between classes"))
	}

	return findings
}

// largestGap returns the longest interval between consecutive events.
func largestGap(events []game.SessionEvent) time.Duration {
	var max time.Duration
	for i := 1; i < len(events); i++ {
		if gap := events[i].Timestamp.Sub(events[i-1].Timestamp); gap > max {
			max = gap
		}
	}
	return max
}

// heartbeatSpread returns the maximum and median heartbeat interval.
// ok is false with fewer than three intervals, too few to judge regularity.
func heartbeatSpread(events []game.SessionEvent) (max, median float64, ok bool) {
	var beats []time.Time
	for _, e := range events {
		if e.Type == game.EventHeartbeat {
			beats = append(beats, e.Timestamp)
		}
	}
	if len(beats) < 4 {
		return 0, 0, false
	}

	intervals := make([]float64, 0, len(beats)-1)
	for i := 1; i < len(beats); i++ {
		intervals = append(intervals, float64(beats[i].Sub(beats[i-1])))
	}
	sort.Float64s(intervals)

	median = intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		median = (intervals[len(intervals)/2-1] + intervals[len(intervals)/2]) / 2
	}
	max = intervals[len(intervals)-1]
	if median <= 0 {
		return 0, 0, false
	}
	return max, median, true
}

// suspiciousDuration checks the reported duration against the event-log
// span (only when both start and end are present) and against the plan.
func suspiciousDuration(s *game.Session) (bool, string) {
	if s.HasEvent(game.EventStart) && s.HasEvent(game.EventEnd) {
		spanMinutes := s.Span().Minutes()
		slack := DurationSlackFraction * spanMinutes
		if slack < DurationSlackMinutes {
			slack = DurationSlackMinutes
		}
		diff := float64(s.ActualMinutes) - spanMinutes
		if diff < 0 {
			diff = -diff
		}
		if diff > slack {
			return true, fmt.Sprintf("reported %d minutes but the event log spans %.0f minutes",
				s.ActualMinutes, spanMinutes)
		}
	}
	if s.PlannedMinutes > 0 && s.ActualMinutes > OverrunFactor*s.PlannedMinutes {
		return true, fmt.Sprintf("reported %d minutes against a %d minute plan",
			s.ActualMinutes, s.PlannedMinutes)
	}
	return false, ""
}
