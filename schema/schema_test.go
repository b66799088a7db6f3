package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileChangeChurn(t *testing.T) {
	tests := []struct {
		name string
		fc   FileChange
		want float64
	}{
		{"partial", FileChange{Path: "a.go", Added: 5, Deleted: 5, FileLines: 100}, 0.1},
		{"clamped", FileChange{Path: "a.go", Added: 300, FileLines: 100}, 1},
		{"empty file", FileChange{Path: "a.go", Added: 0, FileLines: 0}, 0},
		{"new file", FileChange{Path: "a.go", Added: 3, FileLines: 3, IsNew: true}, 1},
		{"deleted file", FileChange{Path: "a.go", Deleted: 3, IsDeleted: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.fc.Churn(), 1e-9)
		})
	}
}

func TestCodeChangePaths(t *testing.T) {
	c := CodeChange{ID: "c1", Files: []FileChange{
		{Path: "z/b.go"},
		{Path: "a/new.go", OldPath: "a/old.go"},
		{Path: "z/b.go"},
	}}
	assert.Equal(t, []string{"a/new.go", "a/old.go", "z/b.go"}, c.Paths())
}

func TestTestCaseSignature(t *testing.T) {
	tc := TestCase{ID: "t1", Covers: []string{"payments", "auth", "payments"}, Features: []string{"checkout"}}
	assert.Equal(t, []string{"component:auth", "component:payments", "feature:checkout"}, tc.Signature())
	assert.Empty(t, TestCase{ID: "t2"}.Signature())
	assert.True(t, IsFeatureElement(FeatureElement("checkout")))
	assert.False(t, IsFeatureElement(ComponentElement("auth")))
}

func TestComponentCriticalityWeight(t *testing.T) {
	assert.Equal(t, 1.0, Component{Criticality: CriticalCriticality}.CriticalityWeight())
	assert.Equal(t, 0.25, Component{Criticality: LowCriticality}.CriticalityWeight())
	assert.Equal(t, 0.5, Component{}.CriticalityWeight())
	assert.Equal(t, 0.5, Component{Criticality: "bogus"}.CriticalityWeight())
}

func TestGraphNodeVariants(t *testing.T) {
	nodes := []GraphNode{
		AtomicComponent{Component{ID: "auth"}},
		CollapsedComponentGroup{ID: "cycle-1", Members: []string{"a", "b"}},
	}
	assert.Equal(t, "auth", nodes[0].NodeID())
	assert.Equal(t, []string{"auth"}, nodes[0].MemberIDs())
	assert.Equal(t, "cycle-1", nodes[1].NodeID())
	assert.Equal(t, []string{"a", "b"}, nodes[1].MemberIDs())
}

func TestTestStatsApply(t *testing.T) {
	var s TestStats
	s.Apply(ExecutionRecord{Seq: 1, Outcome: PassOutcome, DurationMs: 10})
	s.Apply(ExecutionRecord{Seq: 2, Outcome: FailOutcome, DefectCorrelated: true, DurationMs: 10})
	s.Apply(ExecutionRecord{Seq: 3, Outcome: FailOutcome, DurationMs: 10})
	s.Apply(ExecutionRecord{Seq: 4, Outcome: SkipOutcome})
	s.Apply(ExecutionRecord{Seq: 3, Outcome: FailOutcome}) // replay

	assert.Equal(t, 3, s.Executions)
	assert.Equal(t, 2, s.Failures)
	assert.Equal(t, 1, s.DefectsFound)
	assert.Equal(t, 1, s.FalsePositives)
	assert.Equal(t, int64(30), s.TotalDurationMs)
	assert.Equal(t, int64(3), s.LastSeq)
	assert.InDelta(t, 2.0/3.0, s.FailureRate(), 1e-9)
	assert.InDelta(t, 1.0/3.0, s.FalsePositiveRate(), 1e-9)
	assert.InDelta(t, 1.0/3.0, s.DefectYield(), 1e-9)

	var empty TestStats
	assert.Zero(t, empty.FailureRate())
	assert.Zero(t, empty.FalsePositiveRate())
	assert.Zero(t, empty.DefectYield())
}

func TestImpactAnalysisUniverse(t *testing.T) {
	ia := ImpactAnalysis{
		Modified:         []ComponentImpact{{ComponentID: "payments"}},
		Affected:         []ComponentImpact{{ComponentID: "checkout", Depth: 1}},
		AffectedFeatures: []string{"refunds"},
	}
	assert.Equal(t, []string{"component:checkout", "component:payments", "feature:refunds"}, ia.Universe())
	assert.Len(t, ia.Index(), 2)
	assert.Equal(t, "checkout", ia.All()[0].ComponentID)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.Equal(t, 0.5, Clamp01(0.5))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, -0.2, Clamp(-0.5, -0.2, 0.2))
}

func TestUniqueSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueSorted([]string{"c", "a", "b", "a"}))
	assert.Equal(t, []string{}, UniqueSorted(nil))
}

func TestIsSubset(t *testing.T) {
	set := ToSet([]string{"a", "b"})
	assert.True(t, IsSubset([]string{"a"}, set))
	assert.True(t, IsSubset(nil, set))
	assert.False(t, IsSubset([]string{"a", "c"}, set))
}

func TestBucketFor(t *testing.T) {
	th := DefaultBucketThresholds()
	tests := []struct {
		score float64
		want  Bucket
	}{
		{0.95, CriticalBucket},
		{0.8, CriticalBucket},
		{0.79, ImportantBucket},
		{0.5, ImportantBucket},
		{0.2, OptionalBucket},
		{0.19, ExcludedBucket},
		{0, ExcludedBucket},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketFor(tt.score, th), "score %v", tt.score)
	}
}

func TestDefaultWeightsMatchFactorKeys(t *testing.T) {
	for _, table := range AllWeightTables {
		weights := GetDefaultWeights(table)
		keys := FactorKeys(table)
		assert.Len(t, weights, len(keys), "table %s", table)
		for _, k := range keys {
			_, ok := weights[k]
			assert.True(t, ok, "table %s missing %s", table, k)
		}
	}

	sum := 0.0
	for _, w := range GetDefaultWeights(PriorityTable) {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestMaintenanceReportAdjustmentMap(t *testing.T) {
	r := MaintenanceReport{PriorityAdjustments: []PriorityAdjustment{
		{TestID: "a", Delta: -0.1},
		{TestID: "b", Delta: 0.1},
	}}
	assert.Equal(t, map[string]float64{"a": -0.1, "b": 0.1}, r.AdjustmentMap())
}
