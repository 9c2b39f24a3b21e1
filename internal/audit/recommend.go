package audit

import "github.com/focusquest-dev/focusquest/game"

// Per-pattern recommendation text. Phrased as explanation and encouragement,
// never as accusation: the audit flags sessions, it does not prosecute them.
var recommendationText = map[game.Pattern]string{
	game.PatternMissingStart:       "We couldn't see when this session started. If the app closed unexpectedly, try keeping it open while you study.",
	game.PatternMissingEnd:         "This session never recorded an ending. Tapping the stop button when you finish helps us credit your time accurately.",
	game.PatternLargeTimeGap:       "There was a long quiet stretch in this session. Using the pause button during breaks keeps your focus time accurate.",
	game.PatternIrregularHeartbeat: "Your connection looked unstable during this session. Studying somewhere with steadier network helps us track your progress.",
	game.PatternNoEvents:           "We didn't receive any activity for this session. Make sure the timer is running while you study so your effort counts.",
	game.PatternSuspiciousDuration: "The reported length of this session didn't match the activity we saw. Letting the timer measure your session keeps things accurate.",
	game.PatternExtendedInactivity: "Most of this session looked idle. Shorter, focused sessions tend to earn steadier progress.",
	game.PatternVeryShortDuration:  "This was a very short session. Even 25 focused minutes makes a real difference, keep going!",
	game.PatternExtendedDuration:   "That was a marathon session! Remember to take breaks, rested study sticks better.",
}

const generalRecommendation = "A few things about this session looked unusual. Nothing is blocked and your rewards are safe; this note just helps us keep progress fair for everyone."

// recommendations renders one line per triggered pattern in detection order,
// plus the general line at medium or high risk.
func recommendations(findings []game.PatternFinding, risk game.RiskLevel) []string {
	if len(findings) == 0 {
		return nil
	}
	out := make([]string, 0, len(findings)+1)
	for _, f := range findings {
		if text, ok := recommendationText[f.Pattern]; ok {
			out = append(out, text)
		}
	}
	if risk == game.RiskMedium || risk == game.RiskHigh || risk == game.RiskCritical {
		out = append(out, generalRecommendation)
	}
	return out
}
