package agg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/iocache"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id, test string, outcome schema.Outcome, defect bool, components ...string) schema.ExecutionRecord {
	return schema.ExecutionRecord{
		RecordID:         id,
		TestID:           test,
		RunID:            "run-1",
		Outcome:          outcome,
		DurationMs:       100,
		DefectCorrelated: defect,
		Components:       components,
		RecordedAt:       baseTime,
	}
}

func newStore(t *testing.T) contract.HistoryStore {
	t.Helper()
	store, err := iocache.NewHistoryStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadSnapshotNilStore(t *testing.T) {
	snap, err := LoadSnapshot(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Zero(t, snap.Cursor)
	assert.Empty(t, snap.Records)
	assert.NotNil(t, snap.Stats)
}

func TestLoadSnapshot(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	records := []schema.ExecutionRecord{
		record("r1", "test_a", schema.PassOutcome, false, "payments"),
		record("r2", "test_a", schema.FailOutcome, true, "payments"),
		record("r3", "test_a", schema.FailOutcome, false, "auth"),
		record("r4", "test_b", schema.SkipOutcome, false),
		record("r5", "test_b", schema.PassOutcome, false),
		record("r6", "test_c", schema.Outcome("exploded"), false),
	}
	n, err := store.AppendExecutions(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	snap, err := LoadSnapshot(ctx, store, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), snap.Cursor)
	assert.Equal(t, 1, snap.CorruptRecords)
	assert.Len(t, snap.Records, 5)

	a := snap.Stats["test_a"]
	assert.Equal(t, 3, a.Executions)
	assert.Equal(t, 2, a.Failures)
	assert.Equal(t, 1, a.DefectsFound)
	assert.Equal(t, 1, a.FalsePositives)
	assert.Equal(t, int64(3), a.LastSeq)

	b := snap.Stats["test_b"]
	assert.Equal(t, 1, b.Executions)
	assert.NotContains(t, snap.Stats, "test_c")

	// Later appends do not change a taken snapshot
	_, err = store.AppendExecutions(ctx, []schema.ExecutionRecord{record("r7", "test_a", schema.PassOutcome, false)})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Stats["test_a"].Executions)
}

func TestLoadSnapshotStoreError(t *testing.T) {
	store := &iocache.MockHistoryStore{}
	store.On("Snapshot", mock.Anything).Return(int64(0), errors.New("connection refused"))

	_, err := LoadSnapshot(context.Background(), store, 10)
	assert.Error(t, err)
	store.AssertExpectations(t)
}

func TestIndexByTest(t *testing.T) {
	idx := IndexByTest([]schema.ExecutionRecord{
		record("r1", "a", schema.PassOutcome, false),
		record("r2", "a", schema.SkipOutcome, false),
		record("r3", "b", schema.ErrorOutcome, false),
	})
	assert.Len(t, idx["a"], 1)
	assert.Len(t, idx["b"], 1)
}

func TestCorrelation(t *testing.T) {
	records := []schema.ExecutionRecord{
		record("r1", "a", schema.FailOutcome, true, "payments"),
		record("r2", "a", schema.PassOutcome, false, "payments", "auth"),
		record("r3", "a", schema.FailOutcome, true, "search"),
		record("r4", "a", schema.FailOutcome, false, "auth"),
	}

	value, ok := Correlation(records, map[string]struct{}{"payments": {}, "auth": {}})
	assert.True(t, ok)
	assert.InDelta(t, 1.0/3.0, value, 1e-9)

	_, ok = Correlation(records, map[string]struct{}{"billing": {}})
	assert.False(t, ok)
}

func TestSyncStats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var records []schema.ExecutionRecord
	for i := range 4 {
		records = append(records, record(fmt.Sprintf("r%d", i), "test_a", schema.PassOutcome, false))
	}
	_, err := store.AppendExecutions(ctx, records)
	require.NoError(t, err)

	snap, err := LoadSnapshot(ctx, store, 0)
	require.NoError(t, err)

	written, err := SyncStats(ctx, store, snap.Stats)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// Unchanged counts are not rewritten
	written, err = SyncStats(ctx, store, snap.Stats)
	require.NoError(t, err)
	assert.Zero(t, written)

	_, err = store.AppendExecutions(ctx, []schema.ExecutionRecord{record("r9", "test_a", schema.FailOutcome, true)})
	require.NoError(t, err)
	snap, err = LoadSnapshot(ctx, store, 0)
	require.NoError(t, err)
	written, err = SyncStats(ctx, store, snap.Stats)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	stored, err := store.GetTestStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored["test_a"].Version)
	assert.Equal(t, 5, stored["test_a"].Executions)
	assert.Equal(t, 1, stored["test_a"].DefectsFound)
}

func TestSyncStatsRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &iocache.MockHistoryStore{}
	computed := map[string]schema.TestStats{
		"t": {TestID: "t", Executions: 2, LastSeq: 2},
	}

	store.On("GetTestStats", mock.Anything).Return(map[string]schema.TestStats{}, nil).Once()
	store.On("GetTestStats", mock.Anything).Return(map[string]schema.TestStats{
		"t": {TestID: "t", Version: 3, Executions: 1, LastSeq: 1},
	}, nil).Once()
	store.On("UpdateTestStats", mock.Anything, mock.MatchedBy(func(s schema.TestStats) bool { return s.Version == 0 })).
		Return(contract.ErrVersionConflict).Once()
	store.On("UpdateTestStats", mock.Anything, mock.MatchedBy(func(s schema.TestStats) bool { return s.Version == 3 })).
		Return(nil).Once()

	written, err := SyncStats(ctx, store, computed)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	store.AssertExpectations(t)
}

func TestSyncStatsGivesUp(t *testing.T) {
	ctx := context.Background()
	store := &iocache.MockHistoryStore{}
	store.On("GetTestStats", mock.Anything).Return(map[string]schema.TestStats{}, nil)
	store.On("UpdateTestStats", mock.Anything, mock.Anything).Return(contract.ErrVersionConflict)

	_, err := SyncStats(ctx, store, map[string]schema.TestStats{"t": {TestID: "t", Executions: 1, LastSeq: 1}})
	assert.ErrorIs(t, err, contract.ErrVersionConflict)
	store.AssertNumberOfCalls(t, "UpdateTestStats", maxStatsRetries)
}

func TestSyncStatsSkipsNewerStored(t *testing.T) {
	ctx := context.Background()
	store := &iocache.MockHistoryStore{}
	store.On("GetTestStats", mock.Anything).Return(map[string]schema.TestStats{
		"t": {TestID: "t", Version: 1, Executions: 9, LastSeq: 9},
	}, nil)

	written, err := SyncStats(ctx, store, map[string]schema.TestStats{"t": {TestID: "t", Executions: 1, LastSeq: 1}})
	require.NoError(t, err)
	assert.Zero(t, written)
	store.AssertNotCalled(t, "UpdateTestStats", mock.Anything, mock.Anything)
}
