package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/iocache"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func statsSnapshot(stats ...schema.TestStats) *schema.HistorySnapshot {
	snap := &schema.HistorySnapshot{Stats: make(map[string]schema.TestStats, len(stats))}
	for _, s := range stats {
		snap.Stats[s.TestID] = s
	}
	return snap
}

func TestMaintenanceObsoleteCandidate(t *testing.T) {
	catalog := shopCatalog()
	report := BuildMaintenanceReport(catalog, statsSnapshot(
		schema.TestStats{TestID: "test_pay", Executions: 60},
		schema.TestStats{TestID: "test_auth", Executions: 40},
	), 50, 0.2)

	require.Len(t, report.TestsToRemove, 1)
	item := report.TestsToRemove[0]
	assert.Equal(t, "test_pay", item.TestID)
	assert.Equal(t, schema.ReasonObsoleteCandidate, item.Reason)
	assert.Equal(t, 60, item.Executions)

	adjustments := report.AdjustmentMap()
	assert.InDelta(t, -0.05, adjustments["test_pay"], 1e-9)
	assert.NotContains(t, adjustments, "test_auth")
	assert.Empty(t, report.TestsToUpdate)
	assert.Empty(t, report.Warnings)
}

func TestMaintenanceFlakyAndHighYield(t *testing.T) {
	catalog := shopCatalog()
	report := BuildMaintenanceReport(catalog, statsSnapshot(
		schema.TestStats{TestID: "test_auth", Executions: 10, Failures: 4, FalsePositives: 4},
		schema.TestStats{TestID: "test_search", Executions: 10, Failures: 2, DefectsFound: 2},
	), 50, 0.2)

	require.Len(t, report.TestsToUpdate, 1)
	assert.Equal(t, "test_auth", report.TestsToUpdate[0].TestID)
	assert.Equal(t, schema.ReasonStabilizeFlaky, report.TestsToUpdate[0].Reason)
	assert.InDelta(t, 0.4, report.TestsToUpdate[0].FalsePositiveRate, 1e-9)

	require.Len(t, report.PriorityAdjustments, 2)
	auth, search := report.PriorityAdjustments[0], report.PriorityAdjustments[1]
	assert.Equal(t, "test_auth", auth.TestID)
	assert.InDelta(t, -0.1, auth.Delta, 1e-9)
	assert.Equal(t, []schema.MaintenanceReason{schema.ReasonStabilizeFlaky}, auth.Reasons)
	assert.Equal(t, "test_search", search.TestID)
	assert.InDelta(t, 0.1, search.Delta, 1e-9)
	assert.Equal(t, []schema.MaintenanceReason{schema.ReasonHighDefectYield}, search.Reasons)
}

func TestMaintenanceStaleSignature(t *testing.T) {
	catalog := shopCatalog()
	catalog.Tests = append(catalog.Tests, schema.TestCase{ID: "test_legacy", Covers: []string{"payments", "billing_v1"}})

	report := BuildMaintenanceReport(catalog, statsSnapshot(), 50, 0.2)
	require.Len(t, report.TestsToUpdate, 1)
	assert.Equal(t, schema.ReasonStaleSignature, report.TestsToUpdate[0].Reason)
	assert.Contains(t, report.TestsToUpdate[0].Detail, "billing_v1")
}

func TestMaintenanceCoverageGaps(t *testing.T) {
	catalog := &schema.Catalog{
		Components: []schema.Component{
			{ID: "pay", Criticality: schema.CriticalCriticality, DefectDensity: ptr(0.3)},
			{ID: "db", DefectDensity: ptr(0.2)},
			{ID: "api", DependsOn: []string{"db"}},
			{ID: "util", DefectDensity: ptr(0.1)},
			{ID: "fresh"},
			{ID: "clean", DefectDensity: ptr(0)},
			{ID: "tested", DefectDensity: ptr(0.5)},
		},
		Tests: []schema.TestCase{{ID: "t", Covers: []string{"tested"}}},
	}
	report := BuildMaintenanceReport(catalog, statsSnapshot(), 50, 0.2)

	got := make(map[string]schema.TestType)
	for _, gap := range report.TestsToAdd {
		got[gap.ComponentID] = gap.RecommendedType
	}
	assert.Equal(t, map[string]schema.TestType{
		"db":   schema.IntegrationTest,
		"pay":  schema.E2ETest,
		"util": schema.UnitTest,
	}, got)
	assert.Equal(t, "db", report.TestsToAdd[0].ComponentID)
}

func TestMaintenanceCorruptRecordsWarning(t *testing.T) {
	snap := statsSnapshot()
	snap.CorruptRecords = 3
	report := BuildMaintenanceReport(shopCatalog(), snap, 50, 0.2)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, schema.WarnCorruptRecord, report.Warnings[0].Code)
	assert.Equal(t, 3, report.CorruptRecords)
}

func TestMaintenanceEngineWithoutHistory(t *testing.T) {
	engine := NewMaintenanceEngine(shopCatalog(), iocache.NewCacheStoreManager(nil, nil), testConfig())
	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.TestsToRemove)
	assert.Empty(t, report.Warnings)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestMaintenanceEngineHistoryUnavailable(t *testing.T) {
	store := &iocache.MockHistoryStore{}
	store.On("Snapshot", mock.Anything).Return(int64(0), errors.New("connection refused"))

	engine := NewMaintenanceEngine(shopCatalog(), iocache.NewCacheStoreManager(nil, store), testConfig())
	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.Warnings)
	assert.Equal(t, schema.WarnDataUnavailable, report.Warnings[0].Code)
	store.AssertNotCalled(t, "UpdateTestStats", mock.Anything, mock.Anything)
}

func TestMaintenanceEngineRefreshesStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	history, err := iocache.NewHistoryStore(schema.SQLiteBackend, filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })
	derived, err := iocache.NewCacheStore("retest_derived_cache", schema.SQLiteBackend, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = derived.Close() })

	var records []schema.ExecutionRecord
	for i := range 60 {
		records = append(records, schema.ExecutionRecord{
			RecordID:   fmt.Sprintf("r%d", i),
			TestID:     "test_pay",
			RunID:      "run-1",
			Outcome:    schema.PassOutcome,
			DurationMs: 50,
			RecordedAt: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
		})
	}
	_, err = history.AppendExecutions(ctx, records)
	require.NoError(t, err)

	engine := NewMaintenanceEngine(shopCatalog(), iocache.NewCacheStoreManager(derived, history), testConfig())
	report, err := engine.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.TestsToRemove, 1)
	assert.Equal(t, int64(60), report.Cursor)

	stats, err := history.GetTestStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, stats["test_pay"].Executions)

	// Adjustments are published for later plans
	assert.InDelta(t, -0.05, loadAdjustments(derived)["test_pay"], 1e-9)
}
