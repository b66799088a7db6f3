package core

import (
	"math"

	"github.com/huangsam/retest/core/agg"
	"github.com/huangsam/retest/core/algo"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// RelevanceScorer rates every catalog test against one impact analysis.
type RelevanceScorer struct {
	catalog     *schema.Catalog
	history     map[string][]schema.ExecutionRecord
	weights     map[schema.BreakdownKey]float64
	thresholds  map[schema.Bucket]float64
	adjustments map[string]float64
}

// NewRelevanceScorer creates a scorer. Adjustments are the maintenance
// nudges keyed by test ID and may be nil.
func NewRelevanceScorer(catalog *schema.Catalog, snapshot *schema.HistorySnapshot, cfg *contract.Config, adjustments map[string]float64) *RelevanceScorer {
	if snapshot == nil {
		snapshot = agg.EmptySnapshot()
	}
	return &RelevanceScorer{
		catalog:     catalog,
		history:     agg.IndexByTest(snapshot.Records),
		weights:     cfg.Weights(schema.RelevanceTable),
		thresholds:  cfg.Thresholds(),
		adjustments: adjustments,
	}
}

// Score returns the rule-based relevance of every test, ordered by test ID.
func (s *RelevanceScorer) Score(impact *schema.ImpactAnalysis) []schema.RelevanceScore {
	impacted := impact.All()
	impactedSet := make(map[string]struct{}, len(impacted))
	weight := make(map[string]float64, len(impacted))
	risk := make(map[string]float64, len(impacted))
	var totalWeight float64
	for _, c := range impacted {
		w := math.Pow(0.5, float64(c.Depth))
		impactedSet[c.ComponentID] = struct{}{}
		weight[c.ComponentID] = w
		risk[c.ComponentID] = c.Risk
		totalWeight += w
	}
	features := schema.ToSet(impact.AffectedFeatures)

	tests := s.catalog.SortedTests()
	var maxDuration float64
	for _, t := range tests {
		maxDuration = max(maxDuration, float64(t.Duration))
	}

	keys := schema.FactorKeys(schema.RelevanceTable)
	scores := make([]schema.RelevanceScore, 0, len(tests))
	for _, t := range tests {
		var overlapWeight, riskWeighted float64
		for _, c := range schema.UniqueSorted(t.Covers) {
			if w, ok := weight[c]; ok {
				overlapWeight += w
				riskWeighted += w * risk[c]
			}
		}

		factors := make(map[schema.BreakdownKey]float64, len(keys))
		if totalWeight > 0 {
			factors[schema.BreakdownComponentOverlap] = overlapWeight / totalWeight
		}
		if len(features) > 0 {
			hits := 0
			for _, f := range schema.UniqueSorted(t.Features) {
				if _, ok := features[f]; ok {
					hits++
				}
			}
			factors[schema.BreakdownFeatureOverlap] = float64(hits) / float64(len(features))
		} else {
			factors[schema.BreakdownFeatureOverlap] = factors[schema.BreakdownComponentOverlap]
		}
		if overlapWeight > 0 {
			factors[schema.BreakdownRiskAlignment] = riskWeighted / overlapWeight
		}
		if maxDuration > 0 {
			factors[schema.BreakdownCost] = float64(t.Duration) / maxDuration
		}

		// History and adjustments only refine tests that touch the impact.
		structural := factors[schema.BreakdownComponentOverlap] > 0 || factors[schema.BreakdownFeatureOverlap] > 0
		if structural {
			factors[schema.BreakdownHistory] = 0.5
			if corr, ok := agg.Correlation(s.history[t.ID], impactedSet); ok {
				factors[schema.BreakdownHistory] = corr
			}
		}

		total, breakdown := algo.WeightedSum(keys, factors, s.weights)
		score := 0.0
		if structural {
			adj := s.adjustments[t.ID]
			if adj != 0 {
				breakdown[schema.BreakdownAdjustment] = adj
			}
			score = schema.Clamp01(total + adj)
		}

		scores = append(scores, schema.RelevanceScore{
			TestID:    t.ID,
			Score:     score,
			RuleScore: score,
			Bucket:    schema.BucketFor(score, s.thresholds),
			Breakdown: breakdown,
		})
	}
	return scores
}
