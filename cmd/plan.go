package cmd

import (
	"github.com/huangsam/retest/core"
	"github.com/huangsam/retest/internal/contract"
	"github.com/spf13/cobra"
)

// planCmd focused on building the regression suite of one change.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan the regression suite of a code change",
	Long: `Map a code change onto catalog components, score every test against it and
build a prioritized, budget-aware regression suite.

The change comes from a unified diff (--diff, or - for stdin) or from two Git
references (--base-ref and --target-ref). Tests are split into a core tier that
reaches the coverage target and an extended tier for the rest.

Examples:
  # Plan from a diff file
  retest plan --diff change.patch

  # Plan the commits of a branch with a 15 minute budget
  retest plan --base-ref origin/main --target-ref HEAD --time-budget 15m

  # Pipe a diff and show the score breakdown
  git diff main | retest plan --diff - --explain`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRetestPlan(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Planning failed", err)
		}
	},
}

// weightsCmd prints the effective weight tables.
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show the scoring weight tables and relevance thresholds",
	Long: `Print the weights used for relevance, priority and risk scoring, including
any overrides from the config file, and the relevance bucket thresholds.

Examples:
  retest weights
  retest weights --output json`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRetestWeights(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Failed to print weights", err)
		}
	},
}
