// Package agg has aggregation logic for the execution record log.
package agg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/ingest"
	"github.com/huangsam/retest/schema"
)

// DefaultBatchSize is the number of records read per round trip.
const DefaultBatchSize = 500

// maxStatsRetries bounds re-reads after a version conflict.
const maxStatsRetries = 3

// EmptySnapshot returns a snapshot of an empty log.
func EmptySnapshot() *schema.HistorySnapshot {
	return &schema.HistorySnapshot{Stats: map[string]schema.TestStats{}}
}

// LoadSnapshot reads the execution log up to its current high-water mark and
// folds it into an immutable snapshot. Records appended after the cursor was
// taken are not visible. Corrupt records are skipped and counted.
func LoadSnapshot(ctx context.Context, store contract.HistoryStore, batch int) (*schema.HistorySnapshot, error) {
	snap := EmptySnapshot()
	if store == nil {
		return snap, nil
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	cursor, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot read history cursor: %w", err)
	}
	snap.Cursor = cursor

	var after int64
	for after < cursor {
		records, err := store.ReadExecutions(ctx, after, cursor, batch)
		if err != nil {
			return nil, fmt.Errorf("cannot read execution records after %d: %w", after, err)
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			after = max(after, rec.Seq)
			if err := ingest.ValidateRecord(rec); err != nil {
				snap.CorruptRecords++
				contract.LogWarn(fmt.Sprintf("Skipping corrupt execution record %d", rec.Seq), err)
				continue
			}
			snap.Records = append(snap.Records, rec)
		}
	}
	snap.Stats = Aggregate(snap.Records)
	return snap, nil
}

// Aggregate folds records into per-test statistics.
func Aggregate(records []schema.ExecutionRecord) map[string]schema.TestStats {
	stats := make(map[string]schema.TestStats)
	for _, rec := range records {
		s := stats[rec.TestID]
		s.TestID = rec.TestID
		s.Apply(rec)
		if rec.RecordedAt.After(s.UpdatedAt) {
			s.UpdatedAt = rec.RecordedAt
		}
		stats[rec.TestID] = s
	}
	return stats
}

// IndexByTest groups the non-skipped records of a snapshot by test ID.
func IndexByTest(records []schema.ExecutionRecord) map[string][]schema.ExecutionRecord {
	idx := make(map[string][]schema.ExecutionRecord)
	for _, rec := range records {
		if rec.Outcome == schema.SkipOutcome {
			continue
		}
		idx[rec.TestID] = append(idx[rec.TestID], rec)
	}
	return idx
}

// Correlation returns the share of defect-correlated failures among the
// executions that ran for a change touching one of the impacted components.
// ok is false when no such execution exists.
func Correlation(records []schema.ExecutionRecord, impacted map[string]struct{}) (value float64, ok bool) {
	var considered, hits int
	for _, rec := range records {
		touched := false
		for _, c := range rec.Components {
			if _, in := impacted[c]; in {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		considered++
		if rec.Failed() && rec.DefectCorrelated {
			hits++
		}
	}
	if considered == 0 {
		return 0, false
	}
	return float64(hits) / float64(considered), true
}

// SyncStats writes computed statistics back to the store with version checks.
// Stored stats that already cover a later sequence are left alone. A version
// conflict re-reads the stored rows and retries. It returns the number of rows
// written.
func SyncStats(ctx context.Context, store contract.HistoryStore, computed map[string]schema.TestStats) (int, error) {
	if store == nil || len(computed) == 0 {
		return 0, nil
	}
	stored, err := store.GetTestStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot read test stats: %w", err)
	}

	ids := make([]string, 0, len(computed))
	for id := range computed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	written := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		next := computed[id]
		attempt := 0
		for ; attempt < maxStatsRetries; attempt++ {
			cur, exists := stored[id]
			if exists && (cur.LastSeq > next.LastSeq || sameCounts(cur, next)) {
				break
			}
			next.Version = cur.Version
			next.UpdatedAt = time.Now().UTC()
			err := store.UpdateTestStats(ctx, next)
			if err == nil {
				written++
				break
			}
			if !errors.Is(err, contract.ErrVersionConflict) {
				return written, fmt.Errorf("cannot update stats of %s: %w", id, err)
			}
			if stored, err = store.GetTestStats(ctx); err != nil {
				return written, fmt.Errorf("cannot re-read test stats: %w", err)
			}
		}
		if attempt == maxStatsRetries {
			return written, fmt.Errorf("stats of %s: %w", id, contract.ErrVersionConflict)
		}
	}
	return written, nil
}

func sameCounts(a, b schema.TestStats) bool {
	return a.LastSeq == b.LastSeq &&
		a.Executions == b.Executions &&
		a.Failures == b.Failures &&
		a.DefectsFound == b.DefectsFound &&
		a.TotalDurationMs == b.TotalDurationMs
}
