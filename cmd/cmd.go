// Package cmd defines the command-line interface for retest.
package cmd

import (
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(maintainCmd)
	rootCmd.AddCommand(weightsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("catalog", contract.DefaultCatalogPath, "Path to the component and test catalog (YAML)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("history-backend", string(schema.SQLiteBackend), "Execution history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for the execution history (a SQLite file must differ from the cache)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics in text format to this path after the command")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Planning flags are registered per command and bound in sharedSetup
	addPlanFlags(planCmd)
	addPlanFlags(checkCmd)
	checkCmd.Flags().Bool("strict", false, "Also fail when the plan was built in degraded mode")

	recordCmd.Flags().String("results", "-", "Path to execution results (JSON array), or - for stdin")
	recordCmd.Flags().String("run-id", "", "Plan run the results belong to")

	maintainCmd.Flags().Int("obsolete-threshold", contract.DefaultObsoleteThreshold, "Executions without a defect before a test is an obsolete candidate")
	maintainCmd.Flags().Float64("flaky-threshold", contract.DefaultFlakyThreshold, "False-positive rate above which a test is flagged as flaky")

	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}

// addPlanFlags registers the change and planning flags shared by plan and check.
func addPlanFlags(c *cobra.Command) {
	c.Flags().String("diff", "", "Path to a unified diff, or - for stdin")
	c.Flags().String("repo", "", "Repository path used for git diffs and path mapping (default: current directory)")
	c.Flags().String("base-ref", "", "Base Git reference for the change")
	c.Flags().String("target-ref", "", "Target Git reference for the change (default: HEAD)")
	c.Flags().String("change-id", "", "Identifier of the change (derived from the diff when omitted)")
	c.Flags().Float64("coverage-target", contract.DefaultCoverageTarget, "Fraction of impacted components and features the core tier must cover")
	c.Flags().String("time-budget", "", "Time budget of the suite, e.g. 15m (empty means unbounded)")
	c.Flags().Int("max-depth", contract.DefaultMaxDepth, "Maximum dependency depth followed from modified components")
	c.Flags().String("worker-capacity", "", "Per-worker time capacity when packing test groups onto workers, e.g. 10m (empty means unlimited)")
	c.Flags().Float64("redundancy-margin", contract.DefaultRedundancyMargin, "Coverage margin within which a test is considered redundant")
	c.Flags().String("predictor-url", "", "Base URL of the external fault predictor (empty disables it)")
	c.Flags().String("predictor-timeout", contract.DefaultPredictorTimeout.String(), "Deadline for one predictor call")
	c.Flags().Float64("predictor-min-confidence", contract.DefaultPredictorMinConfidence, "Predictions below this confidence are ignored")
	c.Flags().String("mapper-timeout", contract.DefaultMapperTimeout.String(), "Deadline for one component mapping call")
	c.Flags().String("relevance-thresholds", contract.DefaultBucketThresholds, "Bucket thresholds (format: 'critical:0.8,important:0.5,optional:0.2')")
	c.Flags().Bool("explain", false, "Print the top score contributors of each test")
}
