package cmd

import (
	"github.com/huangsam/retest/core"
	"github.com/huangsam/retest/internal/contract"
	"github.com/spf13/cobra"
)

// recordCmd feeds execution results back into the history.
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append test execution results to the history",
	Long: `Read execution results as a JSON array and append them to the execution history.

Each entry holds one execution: test_id, run_id, change_id, outcome
(pass, fail, skip or error), duration_ms, defect_correlated and recorded_at.
Duplicate entries are ignored and corrupt entries are counted and skipped.
Rolling per-test stats are refreshed afterwards.

Examples:
  retest record --results results.json --run-id nightly-42
  ./run-tests | retest record --results -`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRetestRecord(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Failed to record results", err)
		}
	},
}

// maintainCmd reports test suite maintenance candidates.
var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Find obsolete, flaky and missing tests from the execution history",
	Long: `Analyze the execution history against the catalog and report:

- Tests to remove: many executions and never found a defect
- Tests to update: false-positive rate above --flaky-threshold
- Tests to add: risky components no test covers
- Priority adjustments for the next plans

Examples:
  retest maintain
  retest maintain --obsolete-threshold 100 --flaky-threshold 0.1 --output csv`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRetestMaintain(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Maintenance analysis failed", err)
		}
	},
}
