// Package core has core logic for impact analysis, scoring, prioritization and suite optimization.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/outwriter"
	"github.com/huangsam/retest/schema"
)

// ExecutorFunc defines the function signature for executing different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteRetestPlan plans the regression suite of one change and prints it.
// It serves as the main entry point for the 'plan' command.
func ExecuteRetestPlan(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	result, err := RunPlan(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintPlanResult(result, cfg, result.Run.Elapsed)
}

// ExecuteRetestMaintain builds the maintenance report from the execution history.
// It serves as the main entry point for the 'maintain' command.
func ExecuteRetestMaintain(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	report, err := GetMaintenanceReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintMaintenanceReport(report, cfg, time.Since(start))
}

// GetMaintenanceReport loads the catalog and runs the maintenance engine over the history.
func GetMaintenanceReport(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.MaintenanceReport, error) {
	catalog, err := catalogLoader.Load(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return NewMaintenanceEngine(catalog, mgr, cfg).Run(ctx)
}

// ExecuteRetestWeights prints the effective weight tables and thresholds.
func ExecuteRetestWeights(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	return outwriter.PrintWeightDefinitions(cfg)
}
