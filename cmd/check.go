package cmd

import (
	"github.com/huangsam/retest/core"
	"github.com/huangsam/retest/internal/contract"
	"github.com/spf13/cobra"
)

// checkCmd focused on CI/CD gating.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Gate a change in CI/CD pipelines (fails build on violations)",
	Long: `Plan the change like 'plan' and exit non-zero when the suite cannot be trusted.

Violations:
- The suite exceeds --time-budget
- The core tier misses --coverage-target
- With --strict, the plan was built in degraded mode (unmapped files,
  predictor fallbacks, cycles, corrupt history)

Examples:
  # Gate a pull request
  retest check --base-ref origin/main --target-ref HEAD --time-budget 20m

  # Fail on any degradation
  retest check --diff change.patch --strict`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRetestCheck(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Check failed", err)
		}
	},
}
