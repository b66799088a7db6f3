// Package parquet provides data structures and functions for exporting retest
// history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huangsam/retest/schema"
	"github.com/parquet-go/parquet-go"
)

// PlanRun maps to the retest_plan_runs table.
type PlanRun struct {
	RunID          string     `parquet:"run_id,snappy"`
	ChangeID       string     `parquet:"change_id,snappy"`
	StartTime      time.Time  `parquet:"start_time,snappy"`
	EndTime        *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs  *int64     `parquet:"run_duration_ms,optional,snappy"`
	CoreTests      int32      `parquet:"core_tests,snappy"`
	ExtendedTests  int32      `parquet:"extended_tests,snappy"`
	BudgetExceeded bool       `parquet:"budget_exceeded,snappy"`

	// ConfigParams is the JSON-encoded plan configuration
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ExecutionRecord maps to the retest_execution_records table.
type ExecutionRecord struct {
	Seq              int64     `parquet:"seq,snappy"`
	RecordID         string    `parquet:"record_id,snappy"`
	TestID           string    `parquet:"test_id,snappy"`
	RunID            string    `parquet:"run_id,snappy"`
	ChangeID         string    `parquet:"change_id,snappy"`
	Outcome          string    `parquet:"outcome,snappy"`
	DurationMs       int64     `parquet:"duration_ms,snappy"`
	DefectCorrelated bool      `parquet:"defect_correlated,snappy"`
	Components       string    `parquet:"components,snappy"` // comma separated
	RecordedAt       time.Time `parquet:"recorded_at,snappy"`
}

// TestStats maps to the retest_test_stats table.
type TestStats struct {
	TestID            string    `parquet:"test_id,snappy"`
	Version           int64     `parquet:"version,snappy"`
	Executions        int32     `parquet:"executions,snappy"`
	Failures          int32     `parquet:"failures,snappy"`
	DefectsFound      int32     `parquet:"defects_found,snappy"`
	FalsePositives    int32     `parquet:"false_positives,snappy"`
	FalsePositiveRate float64   `parquet:"false_positive_rate,snappy"`
	TotalDurationMs   int64     `parquet:"total_duration_ms,snappy"`
	LastSeq           int64     `parquet:"last_seq,snappy"`
	UpdatedAt         time.Time `parquet:"updated_at,snappy"`
}

// WritePlanRunsParquet writes plan runs to a Parquet file.
func WritePlanRunsParquet(data []PlanRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteExecutionRecordsParquet writes execution records to a Parquet file.
func WriteExecutionRecordsParquet(data []ExecutionRecord, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteTestStatsParquet writes test statistics to a Parquet file.
func WriteTestStatsParquet(data []TestStats, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes rows with a schema inferred from the struct tags of T.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// ConvertPlanRunRecords converts registry rows for Parquet export.
func ConvertPlanRunRecords(records []schema.PlanRunRecord) []PlanRun {
	result := make([]PlanRun, len(records))
	for i, r := range records {
		result[i] = PlanRun{
			RunID:          r.RunID,
			ChangeID:       r.ChangeID,
			StartTime:      r.StartTime,
			EndTime:        r.EndTime,
			RunDurationMs:  r.RunDurationMs,
			CoreTests:      int32(r.CoreTests),
			ExtendedTests:  int32(r.ExtendedTests),
			BudgetExceeded: r.BudgetExceeded,
			ConfigParams:   r.ConfigParams,
		}
	}
	return result
}

// ConvertExecutionRecords converts execution records for Parquet export.
func ConvertExecutionRecords(records []schema.ExecutionRecord) []ExecutionRecord {
	result := make([]ExecutionRecord, len(records))
	for i, r := range records {
		result[i] = ExecutionRecord{
			Seq:              r.Seq,
			RecordID:         r.RecordID,
			TestID:           r.TestID,
			RunID:            r.RunID,
			ChangeID:         r.ChangeID,
			Outcome:          string(r.Outcome),
			DurationMs:       r.DurationMs,
			DefectCorrelated: r.DefectCorrelated,
			Components:       strings.Join(r.Components, ","),
			RecordedAt:       r.RecordedAt,
		}
	}
	return result
}

// ConvertTestStats converts rolling statistics for Parquet export, ordered by test ID.
func ConvertTestStats(stats map[string]schema.TestStats) []TestStats {
	result := make([]TestStats, 0, len(stats))
	for _, id := range schema.SortedKeys(stats) {
		s := stats[id]
		result = append(result, TestStats{
			TestID:            s.TestID,
			Version:           s.Version,
			Executions:        int32(s.Executions),
			Failures:          int32(s.Failures),
			DefectsFound:      int32(s.DefectsFound),
			FalsePositives:    int32(s.FalsePositives),
			FalsePositiveRate: s.FalsePositiveRate(),
			TotalDurationMs:   s.TotalDurationMs,
			LastSeq:           s.LastSeq,
			UpdatedAt:         s.UpdatedAt,
		})
	}
	return result
}
