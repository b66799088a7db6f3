package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/outwriter"
	"github.com/huangsam/retest/schema"
	"go.uber.org/zap"
)

// RunPlan produces the regression plan of one change. The run is recorded in
// the plan run registry when a history store is configured.
func RunPlan(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager, opts ...PlanOption) (*schema.PlanResult, error) {
	start := time.Now()
	builder := NewPlanBuilder(ctx, cfg, mgr, opts...)

	if _, err := builder.LoadCatalog(); err != nil {
		return nil, err
	}
	if _, err := builder.LoadChange(); err != nil {
		return nil, err
	}
	if !shouldSuppressHeader(ctx) && cfg.Output == schema.TextOut {
		outwriter.LogPlanHeader(cfg, builder.catalog, builder.change)
	}

	// --- 0. Begin Run Tracking (if configured) ---
	runID := uuid.NewString()
	ctx = withRunID(ctx, runID)
	builder.ctx = ctx
	history := mgr.GetHistoryStore()
	if history != nil {
		configParams := map[string]any{
			"catalog":           cfg.CatalogPath,
			"coverage_target":   cfg.CoverageTarget,
			"time_budget":       cfg.TimeBudget.String(),
			"max_depth":         cfg.MaxDepth,
			"workers":           cfg.Workers,
			"redundancy_margin": cfg.RedundancyMargin,
			"predictor":         cfg.PredictorURL != "",
		}
		if err := history.BeginRun(ctx, runID, builder.change.ID, start, configParams); err != nil {
			contract.LogWarn("Plan run tracking initialization failed", err)
			history = nil
		}
	}

	// --- 1. Scoring pipeline ---
	builder.LoadHistory()
	if _, err := builder.AnalyzeImpact(); err != nil {
		return nil, err
	}
	if _, err := builder.ScoreTests(); err != nil {
		return nil, err
	}
	result := builder.Prioritize().Optimize().BuildResult().GetResult()

	elapsed := time.Since(start)
	result.Run = schema.PlanRun{RunID: runID, StartedAt: start.UTC(), Elapsed: elapsed}
	planDuration.Observe(elapsed.Seconds())
	plansTotal.WithLabelValues(planStatus(&result.Suite, &result.Impact)).Inc()
	contract.LogInfo("Plan finished",
		zap.String("run_id", runIDFromContext(ctx)),
		zap.String("change_id", result.Suite.ChangeID),
		zap.Int("core_tests", len(result.Suite.CoreTests)),
		zap.Int("extended_tests", len(result.Suite.ExtendedTests)),
		zap.Int("warnings", len(result.Suite.Warnings)),
		zap.Duration("elapsed", elapsed))

	// --- 2. End Run Tracking (if configured) ---
	if history != nil {
		if err := history.EndRun(ctx, runID, time.Now(), len(result.Suite.CoreTests), len(result.Suite.ExtendedTests), result.Suite.BudgetExceeded); err != nil {
			contract.LogWarn("Failed to finalize plan run tracking", err)
		}
	}
	return result, nil
}
