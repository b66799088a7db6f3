package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/retest/core/agg"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/ingest"
	"go.uber.org/zap"
)

// RecordSummary describes what an ingestion of execution results did.
type RecordSummary struct {
	Decoded    int
	Appended   int
	Duplicates int
	Corrupt    int
	Refreshed  int
}

// RecordResults validates execution records from r, appends them to the
// history and refreshes the rolling statistics. Corrupt records are skipped
// and counted; the rest are still recorded.
func RecordResults(ctx context.Context, r io.Reader, runID string, history contract.HistoryStore) (RecordSummary, error) {
	var summary RecordSummary
	if history == nil {
		return summary, fmt.Errorf("%w: no history store is configured", contract.ErrDataUnavailable)
	}

	records, rejected, err := ingest.DecodeExecutionRecords(r, runID)
	if err != nil {
		return summary, fmt.Errorf("failed to decode execution records: %w", err)
	}
	for _, rec := range rejected {
		contract.LogWarn("Skipping corrupt execution record", rec)
	}
	summary.Decoded = len(records)
	summary.Corrupt = len(rejected)
	corruptRecords.Add(float64(len(rejected)))

	appended, err := history.AppendExecutions(ctx, records)
	if err != nil {
		return summary, fmt.Errorf("failed to append execution records: %w", err)
	}
	summary.Appended = appended
	summary.Duplicates = len(records) - appended
	recordsAppended.Add(float64(appended))

	snapshot, err := agg.LoadSnapshot(ctx, history, agg.DefaultBatchSize)
	if err != nil {
		return summary, err
	}
	if summary.Refreshed, err = agg.SyncStats(ctx, history, snapshot.Stats); err != nil {
		return summary, fmt.Errorf("failed to refresh test statistics: %w", err)
	}

	contract.LogInfo("Recorded execution results",
		zap.Int("appended", summary.Appended),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("corrupt", summary.Corrupt),
		zap.Int64("cursor", snapshot.Cursor))
	return summary, nil
}

// ExecuteRetestRecord ingests execution results from --results (or stdin).
func ExecuteRetestRecord(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	path := cfg.ResultsPath
	if path == "" {
		path = "-"
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cannot open results %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	summary, err := RecordResults(ctx, r, cfg.RunID, mgr.GetHistoryStore())
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %d new execution record(s): %d duplicate, %d corrupt, %d test(s) refreshed\n",
		summary.Appended, summary.Duplicates, summary.Corrupt, summary.Refreshed)
	return nil
}
