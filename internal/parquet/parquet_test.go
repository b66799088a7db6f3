package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/retest/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructTags(t *testing.T) {
	tests := []struct {
		name    string
		model   any
		columns []string
	}{
		{"plan runs", new(PlanRun), []string{"run_id", "change_id", "start_time", "end_time", "run_duration_ms", "core_tests", "extended_tests", "budget_exceeded", "config_params"}},
		{"execution records", new(ExecutionRecord), []string{"seq", "record_id", "test_id", "run_id", "change_id", "outcome", "duration_ms", "defect_correlated", "components", "recorded_at"}},
		{"test stats", new(TestStats), []string{"test_id", "version", "executions", "failures", "defects_found", "false_positives", "false_positive_rate", "total_duration_ms", "last_seq", "updated_at"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parquet.SchemaOf(tt.model)
			require.NotNil(t, s)
			for _, col := range tt.columns {
				_, ok := s.Lookup(col)
				assert.True(t, ok, "column %s should exist", col)
			}
		})
	}
}

func TestWriteExecutionRecordsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "records.parquet")
	recorded := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := ConvertExecutionRecords([]schema.ExecutionRecord{
		{Seq: 1, RecordID: "r1", TestID: "test_a", Outcome: schema.PassOutcome, DurationMs: 10, Components: []string{"x", "y"}, RecordedAt: recorded},
		{Seq: 2, RecordID: "r2", TestID: "test_b", Outcome: schema.FailOutcome, DefectCorrelated: true, RecordedAt: recorded},
	})
	require.NoError(t, WriteExecutionRecordsParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[ExecutionRecord](file)
	defer func() { _ = reader.Close() }()

	rows := make([]ExecutionRecord, 2)
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, 2, n)
	assert.Equal(t, "x,y", rows[0].Components)
	assert.Equal(t, "fail", rows[1].Outcome)
	assert.True(t, rows[1].DefectCorrelated)
	assert.True(t, recorded.Equal(rows[0].RecordedAt))
}

func TestWritePlanRunsParquetNullable(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "runs.parquet")
	end := time.Now().UTC()
	ms := int64(1500)
	data := ConvertPlanRunRecords([]schema.PlanRunRecord{
		{RunID: "a", ChangeID: "c", StartTime: end.Add(-time.Second), EndTime: &end, RunDurationMs: &ms, CoreTests: 3},
		{RunID: "b", ChangeID: "c", StartTime: end},
	})
	require.NoError(t, WritePlanRunsParquet(data, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestConvertTestStatsSorted(t *testing.T) {
	rows := ConvertTestStats(map[string]schema.TestStats{
		"b": {TestID: "b", Executions: 4, FalsePositives: 1},
		"a": {TestID: "a"},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].TestID)
	assert.InDelta(t, 0.25, rows[1].FalsePositiveRate, 1e-9)
}

func TestWriteTestStatsParquetBadPath(t *testing.T) {
	err := WriteTestStatsParquet(nil, filepath.Join(t.TempDir(), "missing", "stats.parquet"))
	assert.Error(t, err)
}
