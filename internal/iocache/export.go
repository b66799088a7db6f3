package iocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/retest/internal/parquet"
)

// exportBatchSize is the number of execution records read per round trip during export.
const exportBatchSize = 1000

// ExecuteHistoryExport exports the plan run registry, the execution log and the
// rolling test stats to three Parquet files prefixed by outputFile.
func ExecuteHistoryExport(ctx context.Context, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	store := Manager.GetHistoryStore()
	if store == nil {
		return errors.New("history store is not initialized")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 && status.TotalRecords == 0 {
		return errors.New("no history data found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total plan runs: %d\n", status.TotalRuns)
	fmt.Printf("Total execution records: %d\n", status.TotalRecords)

	runs, err := store.GetAllPlanRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve plan runs: %w", err)
	}
	runsFile := outputFile + ".plan_runs.parquet"
	parquetRuns := parquet.ConvertPlanRunRecords(runs)
	if err := parquet.WritePlanRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write plan runs: %w", err)
	}
	fmt.Printf("Exported %d plan runs to: %s\n", len(parquetRuns), runsFile)

	var records []parquet.ExecutionRecord
	var after int64
	for after < status.Cursor {
		batch, err := store.ReadExecutions(ctx, after, status.Cursor, exportBatchSize)
		if err != nil {
			return fmt.Errorf("failed to retrieve execution records: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		after = batch[len(batch)-1].Seq
		records = append(records, parquet.ConvertExecutionRecords(batch)...)
	}
	recordsFile := outputFile + ".execution_records.parquet"
	if err := parquet.WriteExecutionRecordsParquet(records, recordsFile); err != nil {
		return fmt.Errorf("failed to write execution records: %w", err)
	}
	fmt.Printf("Exported %d execution records to: %s\n", len(records), recordsFile)

	stats, err := store.GetTestStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve test stats: %w", err)
	}
	statsFile := outputFile + ".test_stats.parquet"
	parquetStats := parquet.ConvertTestStats(stats)
	if err := parquet.WriteTestStatsParquet(parquetStats, statsFile); err != nil {
		return fmt.Errorf("failed to write test stats: %w", err)
	}
	fmt.Printf("Exported %d test stats to: %s\n", len(parquetStats), statsFile)

	fmt.Println("\nExport complete! The Parquet files can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	return nil
}
