package search

import "sort"

// RankAndMerge scores and highlights every fanned-out candidate,
// concatenates the per-source lists in source order, stable-sorts by
// descending score, and truncates to limit. Ties keep concatenation
// order: source order first, then each source's native recency. The
// returned total counts all scored candidates before truncation.
func RankAndMerge(fr *FanoutResult, freeText string, limit int) ([]ScoredResult, int) {
	size := 0
	for _, t := range fr.Order {
		size += len(fr.Candidates[t])
	}
	merged := make([]ScoredResult, 0, size)
	for _, t := range fr.Order {
		for _, rec := range fr.Candidates[t] {
			merged = append(merged, ScoredResult{
				Record:     rec,
				Score:      ScoreRecord(rec, freeText),
				Highlights: Highlights(rec, freeText),
			})
		}
	}
	total := len(merged)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, total
}
