package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// ExecuteRetestCheck runs the check command for CI/CD gating.
// It plans the change and returns a non-zero exit code when the time budget
// is exceeded, core coverage misses the target, or, with --strict, the plan
// was built in degraded mode.
func ExecuteRetestCheck(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()

	result, err := RunPlan(WithSuppressHeader(ctx), cfg, mgr)
	if err != nil {
		return err
	}

	check := evaluateCheck(result, cfg)
	printCheckResult(check, &result.Suite, time.Since(start))

	if err := gateError(check); err != nil {
		fmt.Printf("%d violation(s) found\n", len(check.Violations))
		contract.LogWarn("Regression gate failed", err)
		_ = WriteMetrics(cfg.MetricsFile)
		os.Exit(1)
	}
	return nil
}

// evaluateCheck applies the gate to a plan result.
func evaluateCheck(result *schema.PlanResult, cfg *contract.Config) *schema.CheckResult {
	suite := &result.Suite
	check := &schema.CheckResult{
		CoverageTarget: cfg.CoverageTarget * 100,
		Coverage:       suite.CoveragePercentage,
		BudgetExceeded: suite.BudgetExceeded,
		Degraded:       isDegraded(suite, &result.Impact),
	}

	if suite.BudgetExceeded {
		check.Violations = append(check.Violations,
			fmt.Sprintf("must-run tests exceed the %s time budget by %s", cfg.TimeBudget, suite.BudgetOverrun))
	}
	if check.Coverage+coverageEpsilon < check.CoverageTarget {
		check.Violations = append(check.Violations,
			fmt.Sprintf("core coverage %.1f%% is below the %.1f%% target", check.Coverage, check.CoverageTarget))
	}
	if cfg.Strict && check.Degraded {
		check.Violations = append(check.Violations,
			fmt.Sprintf("plan was built in degraded mode (%s)", strings.Join(warningCodes(suite.Warnings), ", ")))
	}

	check.Passed = len(check.Violations) == 0
	return check
}

// gateError summarizes the violations of a failed check. A budget overrun
// wraps contract.ErrBudgetExceeded.
func gateError(check *schema.CheckResult) error {
	if check.Passed {
		return nil
	}
	err := fmt.Errorf("%d violation(s): %s", len(check.Violations), strings.Join(check.Violations, "; "))
	if check.BudgetExceeded {
		return fmt.Errorf("%w: %w", contract.ErrBudgetExceeded, err)
	}
	return err
}

// warningCodes returns the distinct warning codes in first-seen order.
func warningCodes(warns []schema.Warning) []string {
	seen := make(map[schema.WarningCode]struct{}, len(warns))
	var codes []string
	for _, w := range warns {
		if _, ok := seen[w.Code]; ok {
			continue
		}
		seen[w.Code] = struct{}{}
		codes = append(codes, string(w.Code))
	}
	return codes
}

// printCheckResult prints the check result in a concise format suitable for CI/CD.
func printCheckResult(result *schema.CheckResult, suite *schema.RegressionSuite, duration time.Duration) {
	fmt.Println("Regression Gate Results:")

	labels := []string{"Change:", "Core tests:", "Extended tests:", "Coverage:", "Estimate:"}
	values := []any{
		suite.ChangeID,
		len(suite.CoreTests),
		len(suite.ExtendedTests),
		fmt.Sprintf("%.1f%% (target %.1f%%)", result.Coverage, result.CoverageTarget),
		suite.EstimatedDuration,
	}

	maxLabelLen := 0
	for _, label := range labels {
		maxLabelLen = max(maxLabelLen, len(label))
	}
	for i, label := range labels {
		fmt.Printf("  %-*s %v\n", maxLabelLen+1, label, values[i])
	}
	fmt.Println()
	fmt.Printf("Planned in %v\n\n", duration)

	if len(suite.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range suite.Warnings {
			fmt.Printf("  [%s] %s\n", w.Code, w.Message)
		}
		fmt.Println()
	}

	if result.Passed {
		fmt.Printf("✅ Regression plan passed all gates\n")
		return
	}
	fmt.Printf("❌ Regression gate failed:\n")
	for _, v := range result.Violations {
		fmt.Printf("  - %s\n", v)
	}
}
