package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/core/agg"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// Maintenance adjustment sizes.
const (
	flakyPenalty     = 0.1
	obsoletePenalty  = 0.05
	yieldBonus       = 0.1
	yieldBonusCutoff = 0.1
	maxAdjustment    = 0.2
)

// BuildMaintenanceReport derives the maintenance recommendations from a
// history snapshot. It has no side effects.
func BuildMaintenanceReport(catalog *schema.Catalog, snapshot *schema.HistorySnapshot, obsoleteThreshold int, flakyThreshold float64) *schema.MaintenanceReport {
	components := catalog.ComponentIndex()
	report := &schema.MaintenanceReport{
		Cursor:              snapshot.Cursor,
		RecordsScanned:      len(snapshot.Records),
		CorruptRecords:      snapshot.CorruptRecords,
		TestsToRemove:       []schema.MaintenanceItem{},
		TestsToUpdate:       []schema.MaintenanceItem{},
		TestsToAdd:          []schema.CoverageGap{},
		PriorityAdjustments: []schema.PriorityAdjustment{},
	}

	var warns warnings
	if snapshot.CorruptRecords > 0 {
		warns.add(schema.WarnCorruptRecord, fmt.Sprintf("%d execution record(s) were skipped as corrupt", snapshot.CorruptRecords))
	}

	covered := make(map[string]struct{})
	for _, t := range catalog.SortedTests() {
		st := snapshot.Stats[t.ID]
		item := schema.MaintenanceItem{
			TestID:            t.ID,
			Executions:        st.Executions,
			DefectsFound:      st.DefectsFound,
			FalsePositiveRate: st.FalsePositiveRate(),
		}

		var unknown []string
		for _, c := range t.Covers {
			covered[c] = struct{}{}
			if _, ok := components[c]; !ok {
				unknown = append(unknown, c)
			}
		}

		obsolete := st.Executions > obsoleteThreshold && st.DefectsFound == 0
		flaky := st.Executions > 0 && st.FalsePositiveRate() > flakyThreshold

		if obsolete {
			it := item
			it.Reason = schema.ReasonObsoleteCandidate
			it.Detail = fmt.Sprintf("%d executions without a correlated defect", st.Executions)
			report.TestsToRemove = append(report.TestsToRemove, it)
		}
		if flaky {
			it := item
			it.Reason = schema.ReasonStabilizeFlaky
			it.Detail = fmt.Sprintf("%.0f%% of executions failed without a correlated defect", st.FalsePositiveRate()*100)
			report.TestsToUpdate = append(report.TestsToUpdate, it)
		}
		if len(unknown) > 0 {
			it := item
			it.Reason = schema.ReasonStaleSignature
			it.Detail = "covers unknown components: " + strings.Join(schema.UniqueSorted(unknown), ", ")
			report.TestsToUpdate = append(report.TestsToUpdate, it)
		}

		if adj, ok := adjustmentFor(t.ID, st, obsolete, flaky, flakyThreshold); ok {
			report.PriorityAdjustments = append(report.PriorityAdjustments, adj)
		}
	}

	dependents := make(map[string]bool)
	for _, c := range catalog.Components {
		for _, dep := range c.DependsOn {
			dependents[dep] = true
		}
	}
	for _, c := range catalog.Components {
		if !c.HasHistory() || *c.DefectDensity <= 0 {
			continue
		}
		if _, ok := covered[c.ID]; ok {
			continue
		}
		gap := schema.CoverageGap{
			ComponentID:     c.ID,
			DefectDensity:   *c.DefectDensity,
			Criticality:     c.Criticality,
			RecommendedType: schema.UnitTest,
		}
		switch {
		case c.Criticality == schema.CriticalCriticality:
			gap.RecommendedType = schema.E2ETest
		case len(c.DependsOn) > 0 || dependents[c.ID]:
			gap.RecommendedType = schema.IntegrationTest
		}
		report.TestsToAdd = append(report.TestsToAdd, gap)
	}
	sort.Slice(report.TestsToAdd, func(i, j int) bool {
		return report.TestsToAdd[i].ComponentID < report.TestsToAdd[j].ComponentID
	})
	sortItems(report.TestsToUpdate)

	report.Warnings = warns.items()
	return report
}

// adjustmentFor computes the relevance nudge of one test.
func adjustmentFor(testID string, st schema.TestStats, obsolete, flaky bool, flakyThreshold float64) (schema.PriorityAdjustment, bool) {
	adj := schema.PriorityAdjustment{TestID: testID, Reasons: []schema.MaintenanceReason{}}
	if flaky {
		ratio := 2.0
		if flakyThreshold > 0 {
			ratio = min(st.FalsePositiveRate()/flakyThreshold, 2)
		}
		adj.Delta -= flakyPenalty * ratio / 2
		adj.Reasons = append(adj.Reasons, schema.ReasonStabilizeFlaky)
	}
	if obsolete {
		adj.Delta -= obsoletePenalty
		adj.Reasons = append(adj.Reasons, schema.ReasonObsoleteCandidate)
	}
	if st.Executions > 0 && st.DefectYield() >= yieldBonusCutoff {
		adj.Delta += yieldBonus
		adj.Reasons = append(adj.Reasons, schema.ReasonHighDefectYield)
	}
	if len(adj.Reasons) == 0 {
		return adj, false
	}
	adj.Delta = schema.Clamp(adj.Delta, -maxAdjustment, maxAdjustment)
	return adj, true
}

func sortItems(items []schema.MaintenanceItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TestID != items[j].TestID {
			return items[i].TestID < items[j].TestID
		}
		return items[i].Reason < items[j].Reason
	})
}

// MaintenanceEngine reads the execution history, refreshes the rolling test
// statistics and publishes priority adjustments.
type MaintenanceEngine struct {
	catalog *schema.Catalog
	mgr     contract.CacheManager
	cfg     *contract.Config
}

// NewMaintenanceEngine creates an engine.
func NewMaintenanceEngine(catalog *schema.Catalog, mgr contract.CacheManager, cfg *contract.Config) *MaintenanceEngine {
	return &MaintenanceEngine{catalog: catalog, mgr: mgr, cfg: cfg}
}

// Run builds the maintenance report. An unreachable history store degrades
// the report to an empty one carrying a data_unavailable warning.
func (e *MaintenanceEngine) Run(ctx context.Context) (*schema.MaintenanceReport, error) {
	store := e.mgr.GetHistoryStore()
	snapshot, err := agg.LoadSnapshot(ctx, store, agg.DefaultBatchSize)
	var extra []schema.Warning
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		contract.LogWarn("Execution history is unavailable", err)
		snapshot = agg.EmptySnapshot()
		extra = append(extra, schema.Warning{
			Code:    schema.WarnDataUnavailable,
			Message: fmt.Sprintf("execution history could not be read: %v", err),
		})
	}
	corruptRecords.Add(float64(snapshot.CorruptRecords))

	report := BuildMaintenanceReport(e.catalog, snapshot, e.cfg.ObsoleteThreshold, e.cfg.FlakyThreshold)
	report.GeneratedAt = time.Now().UTC()
	report.Warnings = append(extra, report.Warnings...)

	if err == nil && store != nil {
		written, syncErr := agg.SyncStats(ctx, store, snapshot.Stats)
		if syncErr != nil {
			contract.LogWarn("Failed to refresh test statistics", syncErr)
		} else {
			contract.Logger().Sugar().Infof("Refreshed statistics of %d test(s) up to seq %d", written, snapshot.Cursor)
		}
	}
	storeAdjustments(e.mgr.GetDerivedStore(), report.PriorityAdjustments)
	return report, nil
}
