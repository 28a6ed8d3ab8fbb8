package search

import "strings"

// Scoring weights. Every candidate starts at the base score; text and
// type boosts are additive and the result is clamped to maxScore.
const (
	baseScore        = 0.5
	titleBoost       = 0.3
	descriptionBoost = 0.2
	jobBoost         = 0.1
	maxScore         = 1.0
)

// ScoreRecord computes the relevance score for one candidate. Text
// matching is case-insensitive substring containment; with empty free
// text only the type boost applies.
func ScoreRecord(rec CandidateRecord, freeText string) float64 {
	score := baseScore
	if freeText != "" {
		needle := strings.ToLower(freeText)
		if strings.Contains(strings.ToLower(rec.Title), needle) {
			score += titleBoost
		}
		if strings.Contains(strings.ToLower(rec.Description), needle) {
			score += descriptionBoost
		}
	}
	if rec.Source == SourceJob {
		score += jobBoost
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}
