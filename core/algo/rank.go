package algo

import (
	"sort"

	"github.com/huangsam/retest/schema"
)

// RankScores sorts scores by score in descending order, ties by test ID,
// and returns the top 'limit' entries. A limit of zero or less keeps all.
func RankScores(scores []schema.RelevanceScore, limit int) []schema.RelevanceScore {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TestID < scores[j].TestID
	})
	if limit > 0 && len(scores) > limit {
		return scores[:limit]
	}
	return scores
}

// RankByPriority sorts tests by priority in descending order, ties by test ID.
func RankByPriority(tests []schema.PrioritizedTest) {
	sort.Slice(tests, func(i, j int) bool {
		if tests[i].Priority != tests[j].Priority {
			return tests[i].Priority > tests[j].Priority
		}
		return tests[i].TestID < tests[j].TestID
	})
}

// WeightedSum multiplies each factor by its weight and returns the total along
// with the weighted contributions. Keys are summed in the given order so that
// equal inputs always produce bit-identical totals.
func WeightedSum(keys []schema.BreakdownKey, factors, weights map[schema.BreakdownKey]float64) (float64, map[schema.BreakdownKey]float64) {
	breakdown := make(map[schema.BreakdownKey]float64, len(keys))
	var total float64
	for _, k := range keys {
		v := weights[k] * factors[k]
		breakdown[k] = v
		total += v
	}
	return total, breakdown
}
