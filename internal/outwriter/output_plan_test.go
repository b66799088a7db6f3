package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *schema.PlanResult {
	return &schema.PlanResult{
		Run: schema.PlanRun{RunID: "run-1"},
		Suite: schema.RegressionSuite{
			ChangeID:      "c1",
			CoreTests:     []string{"test_core", "test_pay"},
			ExtendedTests: []string{"test_search"},
			DroppedTests:  []string{"test_slow"},
			ParallelGroups: []schema.TestGroup{
				{ID: "stage-0-group-1", Tests: []string{"test_core"}, Duration: time.Minute},
				{ID: "stage-1-group-1", Stage: 1, Tests: []string{"test_pay"}, Duration: 2 * time.Minute, DependsOn: []string{"stage-0-group-1"}},
			},
			EstimatedDuration:  3 * time.Minute,
			CoveragePercentage: 100,
			Warnings: []schema.Warning{
				{Code: schema.WarnUnmappedFile, Message: "1 changed file maps to no component", Subjects: []string{"README.md"}},
			},
		},
		Ordered: []schema.PrioritizedTest{
			{TestID: "test_core", Priority: 0.5, Relevance: 0.3, Bucket: schema.OptionalBucket, Duration: time.Minute, Pulled: true, MustRun: true},
			{TestID: "test_pay", Priority: 0.6675, Relevance: 0.725, Bucket: schema.ImportantBucket, Layer: 1, Duration: 2 * time.Minute, MustRun: true,
				Breakdown: map[schema.BreakdownKey]float64{schema.BreakdownFaultProbability: 0.2175, schema.BreakdownCoverage: 0.2}},
			{TestID: "test_search", Priority: 0.2, Relevance: 0.25, Bucket: schema.OptionalBucket, Duration: time.Minute},
			{TestID: "test_slow", Priority: 0.1, Relevance: 0.2, Bucket: schema.OptionalBucket, Duration: time.Hour},
		},
	}
}

func planConfig(output schema.OutputMode) *contract.Config {
	return &contract.Config{
		Output:       output,
		Precision:    2,
		Width:        120,
		Workers:      2,
		CacheBackend: schema.SQLiteBackend,
	}
}

func TestBuildPlanRows(t *testing.T) {
	rows := buildPlanRows(samplePlan())
	require.Len(t, rows, 4)

	assert.Equal(t, coreTier, rows[0].tier)
	assert.Equal(t, "stage-0-group-1", rows[0].group)
	assert.Equal(t, coreTier, rows[1].tier)
	assert.Equal(t, "stage-1-group-1", rows[1].group)
	assert.Equal(t, extendedTier, rows[2].tier)
	assert.Empty(t, rows[2].group)
	assert.Equal(t, droppedTier, rows[3].tier)
}

func TestWritePlanCSV(t *testing.T) {
	var buf bytes.Buffer
	fmtFloat, intFmt := createFormatters(2)
	require.NoError(t, writePlanCSV(&buf, samplePlan(), fmtFloat, intFmt))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"rank", "test_id", "tier", "priority", "relevance", "label", "layer", "duration_ms", "group", "must_run", "pulled"}, records[0])
	assert.Equal(t, []string{"2", "test_pay", "core", "0.67", "0.72", "Important", "1", "120000", "stage-1-group-1", "true", "false"}, records[2])
	assert.Equal(t, "dropped", records[4][2])
}

func TestWritePlanTable(t *testing.T) {
	cfg := planConfig(schema.TextOut)
	cfg.Explain = true

	var buf bytes.Buffer
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	require.NoError(t, writePlanTable(&buf, samplePlan(), cfg, fmtFloat, intFmt, 150*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "test_pay")
	assert.Contains(t, out, "fault_probability")
	assert.Contains(t, out, "🧪 stage-1-group-1 (parallel, 2m0s): test_pay after stage-0-group-1")
	assert.Contains(t, out, "⚠️  unmapped_file: 1 changed file maps to no component [README.md]")
	assert.Contains(t, out, "Suite c1: 2 core, 1 extended, 1 dropped (coverage: 100.00%, estimated: 3m0s)")
	assert.Contains(t, out, "Plan completed in 150ms with 2 workers. Cache backend: sqlite")
	assert.NotContains(t, out, "Time budget exceeded")
}

func TestWritePlanTableBudgetExceeded(t *testing.T) {
	plan := samplePlan()
	plan.Suite.BudgetExceeded = true
	plan.Suite.BudgetOverrun = 2 * time.Minute

	var buf bytes.Buffer
	fmtFloat, intFmt := createFormatters(2)
	require.NoError(t, writePlanTable(&buf, plan, planConfig(schema.TextOut), fmtFloat, intFmt, time.Second))
	assert.Contains(t, buf.String(), "Time budget exceeded by 2m0s")
}

func TestPrintPlanResultJSON(t *testing.T) {
	cfg := planConfig(schema.JSONOut)
	cfg.OutputFile = filepath.Join(t.TempDir(), "plan.json")

	require.NoError(t, PrintPlanResult(samplePlan(), cfg, time.Second))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)

	var decoded schema.PlanResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []string{"test_core", "test_pay"}, decoded.Suite.CoreTests)
	assert.Equal(t, 3*time.Minute, decoded.Suite.EstimatedDuration)
	assert.True(t, decoded.Suite.HasWarning(schema.WarnUnmappedFile))
}

func TestPrintPlanResultCSVFile(t *testing.T) {
	cfg := planConfig(schema.CSVOut)
	cfg.OutputFile = filepath.Join(t.TempDir(), "plan.csv")

	require.NoError(t, PrintPlanResult(samplePlan(), cfg, time.Second))

	f, err := os.Open(cfg.OutputFile)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
