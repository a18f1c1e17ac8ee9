package triage

import "strings"

// Keyword tables for the heuristic scorers. Matching is case-insensitive
// substring match within each signal string; the highest matching value wins.

var urgencyKeywords = map[string]float64{
	"asap": 0.9, "urgent": 0.9, "immediately": 1.0,
	"today": 0.85, "eod": 0.85, "tonight": 0.85,
	"tomorrow": 0.7, "this week": 0.5, "soon": 0.4,
	"next week": 0.3, "when you can": 0.2,
}

var importanceKeywords = map[string]float64{
	"revenue": 0.9, "legal": 0.9, "compliance": 0.9,
	"board": 0.85, "investor": 0.85, "client": 0.8,
	"deadline": 0.7, "approval": 0.7, "sign off": 0.7,
	"team": 0.6, "process": 0.5, "optional": 0.2,
	"fyi": 0.1, "newsletter": 0.1,
}

const (
	urgencyFloor    = 0.3
	importanceFloor = 0.5
)

// UrgencyScore maps urgency signal phrases to a score in [0.3, 1.0].
// An empty signal list returns the floor directly.
func UrgencyScore(signals []string) float64 {
	return keywordScore(signals, urgencyKeywords, urgencyFloor)
}

// ImportanceScore maps importance signal phrases to a score in [0.5, 1.0].
func ImportanceScore(signals []string) float64 {
	return keywordScore(signals, importanceKeywords, importanceFloor)
}

func keywordScore(signals []string, table map[string]float64, floor float64) float64 {
	if len(signals) == 0 {
		return floor
	}
	max := floor
	for _, signal := range signals {
		lower := strings.ToLower(signal)
		for keyword, score := range table {
			if strings.Contains(lower, keyword) && score > max {
				max = score
			}
		}
	}
	if max > 1.0 {
		max = 1.0
	}
	return max
}
