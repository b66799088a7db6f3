package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/core/agg"
	"github.com/huangsam/retest/core/algo"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// Prioritizer orders the relevant tests for execution and applies the time budget.
type Prioritizer struct {
	catalog *schema.Catalog
	stats   map[string]schema.TestStats
	weights map[schema.BreakdownKey]float64
	budget  time.Duration
}

// NewPrioritizer creates a prioritizer.
func NewPrioritizer(catalog *schema.Catalog, snapshot *schema.HistorySnapshot, cfg *contract.Config) *Prioritizer {
	if snapshot == nil {
		snapshot = agg.EmptySnapshot()
	}
	return &Prioritizer{
		catalog: catalog,
		stats:   snapshot.Stats,
		weights: cfg.Weights(schema.PriorityTable),
		budget:  cfg.TimeBudget,
	}
}

// Prioritize selects critical and important tests together with their
// prerequisites, orders them by dependency layer and priority, and fits
// them into the time budget.
func (p *Prioritizer) Prioritize(impact *schema.ImpactAnalysis, scores []schema.RelevanceScore) *schema.PrioritizedPlan {
	var warns warnings
	tests := p.catalog.TestIndex()
	scoreOf := make(map[string]schema.RelevanceScore, len(scores))
	for _, s := range scores {
		scoreOf[s.TestID] = s
	}

	// Seed with relevant tests, then pull in prerequisites
	selected := make(map[string]bool)
	var queue []string
	for _, s := range scores {
		if s.Bucket == schema.CriticalBucket || s.Bucket == schema.ImportantBucket {
			selected[s.TestID] = false
			queue = append(queue, s.TestID)
		}
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range schema.UniqueSorted(tests[id].DependsOn) {
			if _, ok := tests[dep]; !ok {
				warns.add(schema.WarnMissingTestDependency,
					fmt.Sprintf("test %s depends on unknown test %s", id, dep), id, dep)
				continue
			}
			if _, ok := selected[dep]; !ok {
				selected[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	g := algo.NewDigraph()
	for id := range selected {
		g.AddNode(id)
		for _, dep := range tests[id].DependsOn {
			if _, ok := selected[dep]; ok && dep != id {
				g.AddEdge(id, dep)
			}
		}
	}
	dependents := g.Reverse()

	// Prerequisites of critical tests must run
	var critical []string
	for id := range selected {
		if scoreOf[id].Bucket == schema.CriticalBucket {
			critical = append(critical, id)
		}
	}
	mustRun := g.BoundedBFS(critical, len(selected))

	layering := g.Layers()
	for _, cycle := range layering.Cycles {
		warns.add(schema.WarnTestDependencyCycle,
			fmt.Sprintf("tests %s depend on each other and are scheduled in one layer", strings.Join(cycle, ", ")),
			cycle...)
	}

	impacted := impact.Index()
	var minDuration time.Duration
	for id := range selected {
		if d := tests[id].Duration; d > 0 && (minDuration == 0 || d < minDuration) {
			minDuration = d
		}
	}

	keys := schema.FactorKeys(schema.PriorityTable)
	components := p.catalog.ComponentIndex()
	ordered := make([]schema.PrioritizedTest, 0, len(selected))
	for _, id := range schema.SortedKeys(selected) {
		t := tests[id]
		s := scoreOf[id]

		factors := make(map[schema.BreakdownKey]float64, len(keys))
		factors[schema.BreakdownFaultProbability] = s.Score
		if st, ok := p.stats[id]; ok && st.Executions > 0 {
			factors[schema.BreakdownFaultProbability] = 0.5*s.Score + 0.5*st.DefectYield()
		}

		covered := 0
		business, known := 0.0, false
		for _, c := range schema.UniqueSorted(t.Covers) {
			if _, ok := impacted[c]; ok {
				covered++
			}
			if comp, ok := components[c]; ok {
				business = max(business, comp.CriticalityWeight())
				known = true
			}
		}
		if len(impacted) > 0 {
			factors[schema.BreakdownCoverage] = float64(covered) / float64(len(impacted))
		}
		if !known {
			business = 0.5
		}
		factors[schema.BreakdownBusiness] = business

		factors[schema.BreakdownInverseTime] = 1
		if t.Duration > 0 && minDuration > 0 {
			factors[schema.BreakdownInverseTime] = float64(minDuration) / float64(t.Duration)
		}

		if n := len(selected); n > 1 {
			reach := dependents.BoundedBFS([]string{id}, n)
			factors[schema.BreakdownDependencyBias] = float64(len(reach)-1) / float64(n-1)
		}

		total, breakdown := algo.WeightedSum(keys, factors, p.weights)
		_, must := mustRun[id]
		ordered = append(ordered, schema.PrioritizedTest{
			TestID:    id,
			Priority:  schema.Clamp01(total),
			Relevance: s.Score,
			Bucket:    s.Bucket,
			Layer:     layering.Layer[id],
			Duration:  t.Duration,
			Pulled:    selected[id],
			MustRun:   must,
			Breakdown: breakdown,
		})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Layer != ordered[j].Layer {
			return ordered[i].Layer < ordered[j].Layer
		}
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].TestID < ordered[j].TestID
	})

	plan := &schema.PrioritizedPlan{Ordered: ordered, Dropped: []string{}}
	if p.budget > 0 {
		p.applyBudget(plan, tests, &warns)
	}
	plan.Warnings = warns.items()
	return plan
}

// applyBudget reserves must-run tests first and then admits the rest in
// order while they fit and their prerequisites were admitted.
func (p *Prioritizer) applyBudget(plan *schema.PrioritizedPlan, tests map[string]schema.TestCase, warns *warnings) {
	var reserved time.Duration
	for _, t := range plan.Ordered {
		if t.MustRun {
			reserved += t.Duration
		}
	}

	admitted := make(map[string]struct{}, len(plan.Ordered))
	var kept []schema.PrioritizedTest
	if reserved > p.budget {
		plan.BudgetExceeded = true
		plan.BudgetOverrun = reserved - p.budget
		for _, t := range plan.Ordered {
			if t.MustRun {
				kept = append(kept, t)
			} else {
				plan.Dropped = append(plan.Dropped, t.TestID)
			}
		}
		warns.add(schema.WarnBudgetExceeded,
			fmt.Sprintf("must-run tests need %s, exceeding the %s budget by %s", reserved, p.budget, plan.BudgetOverrun))
		plan.Ordered = kept
		return
	}

	remaining := p.budget - reserved
	for _, t := range plan.Ordered {
		if t.MustRun {
			admitted[t.TestID] = struct{}{}
			kept = append(kept, t)
			continue
		}
		fits := t.Duration <= remaining
		for _, dep := range tests[t.TestID].DependsOn {
			if _, known := tests[dep]; !known || dep == t.TestID {
				continue
			}
			if _, ok := admitted[dep]; !ok {
				fits = false
			}
		}
		if !fits {
			plan.Dropped = append(plan.Dropped, t.TestID)
			continue
		}
		remaining -= t.Duration
		admitted[t.TestID] = struct{}{}
		kept = append(kept, t)
	}
	plan.Ordered = kept
}
