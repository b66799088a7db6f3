package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/core/algo"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// coverageEpsilon absorbs float error when comparing coverage to the target.
const coverageEpsilon = 1e-9

// SuiteOptimizer turns a prioritized plan into the final regression suite.
type SuiteOptimizer struct {
	catalog  *schema.Catalog
	tests    map[string]schema.TestCase
	target   float64
	margin   float64
	workers  int
	capacity time.Duration
}

// NewSuiteOptimizer creates an optimizer.
func NewSuiteOptimizer(catalog *schema.Catalog, cfg *contract.Config) *SuiteOptimizer {
	return &SuiteOptimizer{
		catalog:  catalog,
		tests:    catalog.TestIndex(),
		target:   cfg.CoverageTarget,
		margin:   cfg.RedundancyMargin,
		workers:  max(cfg.Workers, 1),
		capacity: cfg.WorkerCapacity,
	}
}

// Optimize removes redundant tests, splits the rest into core and extended
// tiers and packs the core tier into parallel groups.
func (o *SuiteOptimizer) Optimize(impact *schema.ImpactAnalysis, scores []schema.RelevanceScore, plan *schema.PrioritizedPlan) *schema.RegressionSuite {
	var warns warnings
	position := make(map[string]int, len(plan.Ordered))
	for i, t := range plan.Ordered {
		position[t.TestID] = i
	}
	universe := schema.ToSet(impact.Universe())

	// Optional tests never enter the plan but may run opportunistically
	planned := make(map[string]struct{}, len(plan.Ordered)+len(plan.Dropped))
	for id := range position {
		planned[id] = struct{}{}
	}
	for _, id := range plan.Dropped {
		planned[id] = struct{}{}
	}
	var optional []string
	ranked := append([]schema.RelevanceScore(nil), scores...)
	for _, s := range algo.RankScores(ranked, 0) {
		if _, ok := planned[s.TestID]; !ok && s.Bucket == schema.OptionalBucket {
			optional = append(optional, s.TestID)
		}
	}

	suite := &schema.RegressionSuite{
		ChangeID:       impact.ChangeID,
		CoreTests:      []string{},
		ExtendedTests:  []string{},
		DroppedTests:   append([]string{}, plan.Dropped...),
		ParallelGroups: []schema.TestGroup{},
		BudgetExceeded: plan.BudgetExceeded,
		BudgetOverrun:  plan.BudgetOverrun,
	}

	if plan.BudgetExceeded {
		for _, t := range plan.Ordered {
			suite.CoreTests = append(suite.CoreTests, t.TestID)
		}
		suite.DroppedTests = append(suite.DroppedTests, optional...)
	} else {
		accepted, demoted := o.removeRedundant(plan.Ordered)
		core, reached := o.split(accepted, universe)
		if !reached {
			warns.add(schema.WarnCoverageUnreachable,
				fmt.Sprintf("coverage target %.0f%% cannot be reached with the relevant tests; keeping all of them in the core tier", o.target*100))
		}
		core = o.withPrerequisites(core, position)

		var extended []string
		for _, t := range accepted {
			demoted = append(demoted, t.TestID)
		}
		for _, id := range demoted {
			if _, ok := core[id]; !ok {
				extended = append(extended, id)
			}
		}
		suite.CoreTests = byPosition(schema.SortedKeys(core), position)
		suite.ExtendedTests = append(byPosition(extended, position), optional...)
	}

	suite.CoveragePercentage = o.coverage(suite.CoreTests, universe) * 100
	suite.ParallelGroups, suite.EstimatedDuration = o.group(suite.CoreTests, position, &warns)
	suite.Warnings = warns.items()
	return suite
}

// removeRedundant walks the plan in priority order and demotes tests whose
// signature is already covered by accepted tests of comparable score. A
// second pass demotes accepted tests strictly subsumed by a stronger one.
func (o *SuiteOptimizer) removeRedundant(ordered []schema.PrioritizedTest) ([]schema.PrioritizedTest, []string) {
	byPriority := append([]schema.PrioritizedTest(nil), ordered...)
	algo.RankByPriority(byPriority)

	best := make(map[string]float64) // signature element to the highest accepted score covering it
	var accepted []schema.PrioritizedTest
	var demoted []string
	for _, t := range byPriority {
		sig := o.tests[t.TestID].Signature()
		if len(sig) > 0 && coveredBy(sig, best) && t.Relevance <= minCover(sig, best)+o.margin {
			demoted = append(demoted, t.TestID)
			continue
		}
		accepted = append(accepted, t)
		for _, e := range sig {
			best[e] = max(best[e], t.Relevance)
		}
	}

	var kept []schema.PrioritizedTest
	for _, a := range accepted {
		sigA := o.tests[a.TestID].Signature()
		subsumed := false
		for _, b := range accepted {
			if a.TestID == b.TestID || b.Relevance < a.Relevance {
				continue
			}
			sigB := o.tests[b.TestID].Signature()
			if len(sigA) > 0 && len(sigA) < len(sigB) && schema.IsSubset(sigA, schema.ToSet(sigB)) {
				subsumed = true
				break
			}
		}
		if subsumed {
			demoted = append(demoted, a.TestID)
			continue
		}
		kept = append(kept, a)
	}
	return kept, demoted
}

func coveredBy(sig []string, best map[string]float64) bool {
	for _, e := range sig {
		if _, ok := best[e]; !ok {
			return false
		}
	}
	return true
}

func minCover(sig []string, best map[string]float64) float64 {
	m := 1.0
	for _, e := range sig {
		m = min(m, best[e])
	}
	return m
}

// split keeps critical and must-run tests in the core tier and adds others in
// priority order until the coverage target is met. It reports whether the
// target was reachable at all.
func (o *SuiteOptimizer) split(accepted []schema.PrioritizedTest, universe map[string]struct{}) (map[string]struct{}, bool) {
	core := make(map[string]struct{})
	covered := make(map[string]struct{})
	take := func(id string) {
		core[id] = struct{}{}
		for _, e := range o.tests[id].Signature() {
			if _, ok := universe[e]; ok {
				covered[e] = struct{}{}
			}
		}
	}
	ratio := func() float64 {
		if len(universe) == 0 {
			return 1
		}
		return float64(len(covered)) / float64(len(universe))
	}

	for _, t := range accepted {
		if t.Bucket == schema.CriticalBucket || t.MustRun {
			take(t.TestID)
		}
	}
	for _, t := range accepted {
		if ratio() >= o.target-coverageEpsilon {
			return core, true
		}
		if _, ok := core[t.TestID]; ok {
			continue
		}
		adds := false
		for _, e := range o.tests[t.TestID].Signature() {
			if _, in := universe[e]; in {
				if _, seen := covered[e]; !seen {
					adds = true
					break
				}
			}
		}
		if adds {
			take(t.TestID)
		}
	}
	if ratio() >= o.target-coverageEpsilon {
		return core, true
	}

	for _, t := range accepted {
		core[t.TestID] = struct{}{}
	}
	return core, false
}

// withPrerequisites adds the planned prerequisites of every core test.
func (o *SuiteOptimizer) withPrerequisites(core map[string]struct{}, position map[string]int) map[string]struct{} {
	queue := schema.SortedKeys(core)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range o.tests[id].DependsOn {
			if _, planned := position[dep]; !planned {
				continue
			}
			if _, ok := core[dep]; !ok {
				core[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	return core
}

// coverage is the share of the universe covered by the given tests.
func (o *SuiteOptimizer) coverage(ids []string, universe map[string]struct{}) float64 {
	if len(universe) == 0 {
		return 1
	}
	covered := make(map[string]struct{})
	for _, id := range ids {
		for _, e := range o.tests[id].Signature() {
			if _, ok := universe[e]; ok {
				covered[e] = struct{}{}
			}
		}
	}
	return float64(len(covered)) / float64(len(universe))
}

// group packs the core tests into dependency-respecting parallel groups and
// returns them with the estimated wall-clock duration.
func (o *SuiteOptimizer) group(core []string, position map[string]int, warns *warnings) ([]schema.TestGroup, time.Duration) {
	inCore := schema.ToSet(core)
	g := algo.NewDigraph()
	for _, id := range core {
		g.AddNode(id)
		for _, dep := range o.tests[id].DependsOn {
			if _, ok := inCore[dep]; ok && dep != id {
				g.AddEdge(id, dep)
			}
		}
	}

	// A test runs in the stage after an isolated prerequisite, or after any
	// prerequisite when it is isolated itself.
	stage := make(map[string]int, len(core))
	for _, id := range core {
		s := 0
		for _, dep := range g.Successors(id) {
			ps, ok := stage[dep]
			if !ok {
				continue
			}
			if o.tests[dep].Isolated || o.tests[id].Isolated {
				ps++
			}
			s = max(s, ps)
		}
		stage[id] = s
	}

	byStage := make(map[int][]string)
	for _, id := range core {
		byStage[stage[id]] = append(byStage[stage[id]], id)
	}
	stages := make([]int, 0, len(byStage))
	for s := range byStage {
		stages = append(stages, s)
	}
	sort.Ints(stages)

	groups := []schema.TestGroup{}
	groupOf := make(map[string]int, len(core))
	var estimated time.Duration
	for _, s := range stages {
		var parallel, serial []string
		for _, id := range byStage[s] {
			if o.tests[id].Isolated {
				serial = append(serial, id)
			} else {
				parallel = append(parallel, id)
			}
		}

		var units []algo.Unit
		for _, comp := range g.WeaklyConnected(parallel) {
			units = append(units, o.unitOf(comp, position, warns))
		}
		packing := algo.PackLPT(units, o.workers, o.capacity)
		for _, id := range packing.Oversized {
			warns.add(schema.WarnCapacityExceeded,
				fmt.Sprintf("tests bound to %s exceed the worker capacity of %s", id, o.capacity), id)
		}

		var longest time.Duration
		for i, bin := range packing.Bins {
			items := byPosition(bin.Items(), position)
			groups = append(groups, schema.TestGroup{
				ID:       fmt.Sprintf("stage-%d-group-%d", s, i+1),
				Stage:    s,
				Tests:    items,
				Duration: bin.Load,
			})
			for _, id := range items {
				groupOf[id] = len(groups) - 1
			}
			longest = max(longest, bin.Load)
		}
		estimated += longest

		for i, id := range serial {
			groups = append(groups, schema.TestGroup{
				ID:       fmt.Sprintf("stage-%d-serial-%d", s, i+1),
				Stage:    s,
				Tests:    []string{id},
				Duration: o.tests[id].Duration,
				Serial:   true,
			})
			groupOf[id] = len(groups) - 1
			estimated += o.tests[id].Duration
		}
	}

	for gi := range groups {
		var deps []string
		for _, id := range groups[gi].Tests {
			for _, dep := range g.Successors(id) {
				if other := groupOf[dep]; other != gi {
					deps = append(deps, groups[other].ID)
				}
			}
		}
		if len(deps) > 0 {
			groups[gi].DependsOn = schema.UniqueSorted(deps)
		}
	}
	return groups, estimated
}

// unitOf bundles dependency-linked tests that must share a worker.
func (o *SuiteOptimizer) unitOf(members []string, position map[string]int, warns *warnings) algo.Unit {
	u := algo.Unit{ID: members[0], Items: byPosition(members, position)}
	holders := make(map[string][]string)
	for _, id := range u.Items {
		t := o.tests[id]
		u.Size += t.Duration
		for _, r := range schema.UniqueSorted(t.Resources) {
			holders[r] = append(holders[r], id)
		}
	}
	u.Resources = schema.SortedKeys(holders)
	for _, r := range u.Resources {
		if len(holders[r]) > 1 {
			warns.add(schema.WarnConflictUnsatisfiable,
				fmt.Sprintf("tests %s share resource %s but depend on each other and run in one group", strings.Join(holders[r], ", "), r),
				holders[r]...)
		}
	}
	return u
}

// byPosition orders test IDs by their place in the prioritized plan.
func byPosition(ids []string, position map[string]int) []string {
	out := append([]string{}, ids...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := position[out[i]]
		pj, okj := position[out[j]]
		if oki != okj {
			return oki
		}
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
