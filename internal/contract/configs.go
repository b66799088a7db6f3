package contract

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/retest/schema"
)

// Default values for configuration.
const (
	DefaultCoverageTarget         = 0.8
	DefaultObsoleteThreshold      = 50
	DefaultFlakyThreshold         = 0.2
	DefaultPredictorTimeout       = 5 * time.Second
	DefaultPredictorMinConfidence = 0.5
	DefaultMapperTimeout          = 5 * time.Second
	DefaultMaxDepth               = 3
	MaxTraversalDepth             = 32
	DefaultRedundancyMargin       = 0.1
	DefaultPrecision              = 2
	DefaultCatalogPath            = "retest.yaml"
	DefaultBucketThresholds       = "critical:0.8,important:0.5,optional:0.2"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// RelevanceWeightsRaw holds custom relevance weights. Pointers mark optional fields.
type RelevanceWeightsRaw struct {
	ComponentOverlap   *float64 `mapstructure:"component_overlap"`
	FeatureOverlap     *float64 `mapstructure:"feature_overlap"`
	HistoryCorrelation *float64 `mapstructure:"history_correlation"`
	RiskAlignment      *float64 `mapstructure:"risk_alignment"`
	Cost               *float64 `mapstructure:"cost"`
}

// PriorityWeightsRaw holds custom priority weights.
type PriorityWeightsRaw struct {
	FaultProbability    *float64 `mapstructure:"fault_probability"`
	Coverage            *float64 `mapstructure:"coverage"`
	InverseTime         *float64 `mapstructure:"inverse_time"`
	BusinessCriticality *float64 `mapstructure:"business_criticality"`
	DependencyBias      *float64 `mapstructure:"dependency_bias"`
}

// RiskWeightsRaw holds custom risk weights.
type RiskWeightsRaw struct {
	Churn         *float64 `mapstructure:"churn"`
	DefectDensity *float64 `mapstructure:"defect_density"`
	Criticality   *float64 `mapstructure:"criticality"`
}

// WeightsRawInput holds all custom weight definitions from the YAML config file.
type WeightsRawInput struct {
	Relevance *RelevanceWeightsRaw `mapstructure:"relevance"`
	Priority  *PriorityWeightsRaw  `mapstructure:"priority"`
	Risk      *RiskWeightsRaw      `mapstructure:"risk"`
}

// ThresholdsRawInput holds relevance bucket thresholds from the YAML config file.
type ThresholdsRawInput struct {
	Critical  *float64 `mapstructure:"critical"`
	Important *float64 `mapstructure:"important"`
	Optional  *float64 `mapstructure:"optional"`
}

// Config holds the runtime configuration for planning and maintenance.
// This struct remains the "final, validated" config.
type Config struct {
	RepoPath    string
	CatalogPath string
	DiffPath    string
	BaseRef     string
	TargetRef   string
	ChangeID    string
	ResultsPath string
	RunID       string

	CoverageTarget   float64
	TimeBudget       time.Duration // 0 = unbounded
	MaxDepth         int
	Workers          int
	WorkerCapacity   time.Duration // 0 = unlimited
	RedundancyMargin float64
	BucketThresholds map[schema.Bucket]float64

	PredictorURL           string
	PredictorTimeout       time.Duration
	PredictorMinConfidence float64
	MapperTimeout          time.Duration

	ObsoleteThreshold int
	FlakyThreshold    float64

	Strict     bool
	Explain    bool
	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	MetricsFile string
	LogLevel    string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext

	// CustomWeights is a mapping of [Table][BreakdownKey] = Weight
	CustomWeights map[schema.WeightTable]map[schema.BreakdownKey]float64

	// ComputedWeights is the final weights map for each table, computed from defaults + custom overrides
	ComputedWeights map[schema.WeightTable]map[schema.BreakdownKey]float64
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Catalog          string `mapstructure:"catalog"`
	Workers          int    `mapstructure:"workers"`
	Precision        int    `mapstructure:"precision"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Width            int    `mapstructure:"width"`
	Color            string `mapstructure:"color"`
	LogLevel         string `mapstructure:"log-level"`
	MetricsFile      string `mapstructure:"metrics-file"`
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`

	// --- Fields from planCmd.Flags() and checkCmd.Flags() ---
	Diff                   string  `mapstructure:"diff"`
	Repo                   string  `mapstructure:"repo"`
	BaseRef                string  `mapstructure:"base-ref"`
	TargetRef              string  `mapstructure:"target-ref"`
	ChangeID               string  `mapstructure:"change-id"`
	CoverageTarget         float64 `mapstructure:"coverage-target"`
	TimeBudget             string  `mapstructure:"time-budget"`
	MaxDepth               int     `mapstructure:"max-depth"`
	WorkerCapacity         string  `mapstructure:"worker-capacity"`
	RedundancyMargin       float64 `mapstructure:"redundancy-margin"`
	PredictorURL           string  `mapstructure:"predictor-url"`
	PredictorTimeout       string  `mapstructure:"predictor-timeout"`
	PredictorMinConfidence float64 `mapstructure:"predictor-min-confidence"`
	MapperTimeout          string  `mapstructure:"mapper-timeout"`
	ThresholdsStr          string  `mapstructure:"relevance-thresholds"`
	Explain                bool    `mapstructure:"explain"`
	Strict                 bool    `mapstructure:"strict"`

	// --- Fields from maintainCmd.Flags() ---
	ObsoleteThreshold int     `mapstructure:"obsolete-threshold"`
	FlakyThreshold    float64 `mapstructure:"flaky-threshold"`

	// --- Fields from recordCmd.Flags() ---
	Results string `mapstructure:"results"`
	RunID   string `mapstructure:"run-id"`

	// --- Custom weights from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`

	// --- Relevance thresholds from config file ---
	Thresholds ThresholdsRawInput `mapstructure:"relevance_thresholds"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.BucketThresholds != nil {
		clone.BucketThresholds = make(map[schema.Bucket]float64, len(c.BucketThresholds))
		maps.Copy(clone.BucketThresholds, c.BucketThresholds)
	}
	clone.CustomWeights = cloneWeights(c.CustomWeights)
	clone.ComputedWeights = cloneWeights(c.ComputedWeights)
	return &clone
}

func cloneWeights(in map[schema.WeightTable]map[schema.BreakdownKey]float64) map[schema.WeightTable]map[schema.BreakdownKey]float64 {
	if in == nil {
		return nil
	}
	out := make(map[schema.WeightTable]map[schema.BreakdownKey]float64, len(in))
	for table, tableMap := range in {
		out[table] = make(map[schema.BreakdownKey]float64, len(tableMap))
		maps.Copy(out[table], tableMap)
	}
	return out
}

// Weights returns the computed weights of a table, falling back to defaults.
func (c *Config) Weights(table schema.WeightTable) map[schema.BreakdownKey]float64 {
	if w, ok := c.ComputedWeights[table]; ok {
		return w
	}
	return schema.GetDefaultWeights(table)
}

// Thresholds returns the relevance bucket thresholds, falling back to defaults.
func (c *Config) Thresholds() map[schema.Bucket]float64 {
	if c.BucketThresholds != nil {
		return c.BucketThresholds
	}
	return schema.DefaultBucketThresholds()
}

// UsesGit reports whether the change should be built from two git references.
func (c *Config) UsesGit() bool {
	return c.DiffPath == "" && c.BaseRef != ""
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processPlanInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := processMaintenanceInputs(cfg, input); err != nil {
		return err
	}
	if err := processCustomWeights(cfg, input); err != nil {
		return err
	}
	if err := processBucketThresholds(cfg, input); err != nil {
		return err
	}
	if err := resolveChangeSource(ctx, cfg, client, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}

	// Cache and history must not share one SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		historyDBPath := cfg.HistoryDBConnect
		if historyDBPath == "" {
			historyDBPath = GetHistoryDBFilePath()
		}
		if cacheDBPath == historyDBPath && cacheDBPath != ":memory:" {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}

	return nil
}

// validateSimpleInputs processes and validates output and storage fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.CatalogPath = strings.TrimSpace(input.Catalog)
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = DefaultCatalogPath
	}
	cfg.OutputFile = input.OutputFile
	cfg.Explain = input.Explain
	cfg.Strict = input.Strict
	cfg.Width = input.Width
	cfg.MetricsFile = input.MetricsFile
	cfg.ResultsPath = input.Results
	cfg.RunID = strings.TrimSpace(input.RunID)

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if err := SetLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}

	// --- 1. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 2. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", cfg.Output)
	}

	// --- 3. Backend Validation ---
	return validateBackendConfigs(cfg, input)
}

// processPlanInputs validates the numeric planning knobs.
func processPlanInputs(cfg *Config, input *ConfigRawInput) error {
	if input.CoverageTarget <= 0 || input.CoverageTarget > 1 {
		return fmt.Errorf("coverage-target must be in (0, 1] (received %.3f)", input.CoverageTarget)
	}
	cfg.CoverageTarget = input.CoverageTarget

	if input.MaxDepth < 0 || input.MaxDepth > MaxTraversalDepth {
		return fmt.Errorf("max-depth must be between 0 and %d (received %d)", MaxTraversalDepth, input.MaxDepth)
	}
	cfg.MaxDepth = input.MaxDepth

	if input.RedundancyMargin < 0 || input.RedundancyMargin > 1 {
		return fmt.Errorf("redundancy-margin must be between 0 and 1 (received %.3f)", input.RedundancyMargin)
	}
	cfg.RedundancyMargin = input.RedundancyMargin

	if input.PredictorMinConfidence < 0 || input.PredictorMinConfidence > 1 {
		return fmt.Errorf("predictor-min-confidence must be between 0 and 1 (received %.3f)", input.PredictorMinConfidence)
	}
	cfg.PredictorMinConfidence = input.PredictorMinConfidence
	cfg.PredictorURL = strings.TrimSpace(input.PredictorURL)

	return nil
}

// processDurations parses every duration flag.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	var err error
	if cfg.TimeBudget, err = parseOptionalDuration("time-budget", input.TimeBudget, 0); err != nil {
		return err
	}
	if cfg.WorkerCapacity, err = parseOptionalDuration("worker-capacity", input.WorkerCapacity, 0); err != nil {
		return err
	}
	if cfg.PredictorTimeout, err = parseOptionalDuration("predictor-timeout", input.PredictorTimeout, DefaultPredictorTimeout); err != nil {
		return err
	}
	if cfg.MapperTimeout, err = parseOptionalDuration("mapper-timeout", input.MapperTimeout, DefaultMapperTimeout); err != nil {
		return err
	}
	if cfg.PredictorTimeout == 0 {
		return fmt.Errorf("predictor-timeout must be greater than 0")
	}
	if cfg.MapperTimeout == 0 {
		return fmt.Errorf("mapper-timeout must be greater than 0")
	}
	return nil
}

func parseOptionalDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", name, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative (received %s)", name, value)
	}
	return d, nil
}

// processMaintenanceInputs validates the maintenance thresholds.
func processMaintenanceInputs(cfg *Config, input *ConfigRawInput) error {
	if input.ObsoleteThreshold < 0 {
		return fmt.Errorf("obsolete-threshold cannot be negative (received %d)", input.ObsoleteThreshold)
	}
	cfg.ObsoleteThreshold = input.ObsoleteThreshold

	if input.FlakyThreshold <= 0 || input.FlakyThreshold > 1 {
		return fmt.Errorf("flaky-threshold must be in (0, 1] (received %.3f)", input.FlakyThreshold)
	}
	cfg.FlakyThreshold = input.FlakyThreshold
	return nil
}

// ProcessWeightsRawInput converts WeightsRawInput into a map of custom weights.
// Tables that are nil (not provided) are skipped.
func ProcessWeightsRawInput(weights WeightsRawInput) map[schema.WeightTable]map[schema.BreakdownKey]float64 {
	result := make(map[schema.WeightTable]map[schema.BreakdownKey]float64)

	set := func(table schema.WeightTable, key schema.BreakdownKey, v *float64) {
		if v == nil {
			return
		}
		if result[table] == nil {
			result[table] = make(map[schema.BreakdownKey]float64)
		}
		result[table][key] = *v
	}

	if r := weights.Relevance; r != nil {
		set(schema.RelevanceTable, schema.BreakdownComponentOverlap, r.ComponentOverlap)
		set(schema.RelevanceTable, schema.BreakdownFeatureOverlap, r.FeatureOverlap)
		set(schema.RelevanceTable, schema.BreakdownHistory, r.HistoryCorrelation)
		set(schema.RelevanceTable, schema.BreakdownRiskAlignment, r.RiskAlignment)
		set(schema.RelevanceTable, schema.BreakdownCost, r.Cost)
	}
	if p := weights.Priority; p != nil {
		set(schema.PriorityTable, schema.BreakdownFaultProbability, p.FaultProbability)
		set(schema.PriorityTable, schema.BreakdownCoverage, p.Coverage)
		set(schema.PriorityTable, schema.BreakdownInverseTime, p.InverseTime)
		set(schema.PriorityTable, schema.BreakdownBusiness, p.BusinessCriticality)
		set(schema.PriorityTable, schema.BreakdownDependencyBias, p.DependencyBias)
	}
	if r := weights.Risk; r != nil {
		set(schema.RiskTable, schema.BreakdownChurn, r.Churn)
		set(schema.RiskTable, schema.BreakdownDefectDensity, r.DefectDensity)
		set(schema.RiskTable, schema.BreakdownCriticality, r.Criticality)
	}

	return result
}

// ValidateWeights checks a complete weight table.
// Priority and risk weights must sum to 1.0. Positive relevance weights may sum
// to at most 1.0, and the cost weight must be non-positive and smaller in
// magnitude than every positive relevance weight.
func ValidateWeights(table schema.WeightTable, weights map[schema.BreakdownKey]float64) error {
	sum := 0.0
	for key, w := range weights {
		if key == schema.BreakdownCost {
			continue
		}
		if w < 0 {
			return fmt.Errorf("weight %s.%s cannot be negative (received %.3f)", table, key, w)
		}
		sum += w
	}

	if table != schema.RelevanceTable {
		if sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("weights for table %s must sum to 1.0, got %.3f", table, sum)
		}
		return nil
	}

	if sum <= 0 || sum > 1.001 {
		return fmt.Errorf("positive relevance weights must sum to at most 1.0, got %.3f", sum)
	}
	cost := weights[schema.BreakdownCost]
	if cost > 0 {
		return fmt.Errorf("relevance cost weight must not be positive (received %.3f)", cost)
	}
	for key, w := range weights {
		if key != schema.BreakdownCost && w > 0 && -cost > w {
			return fmt.Errorf("relevance cost weight %.3f must not outweigh %s (%.3f)", cost, key, w)
		}
	}
	return nil
}

// processCustomWeights merges the custom weights over the defaults and validates
// the resulting tables.
func processCustomWeights(cfg *Config, input *ConfigRawInput) error {
	cfg.CustomWeights = ProcessWeightsRawInput(input.Weights)

	cfg.ComputedWeights = make(map[schema.WeightTable]map[schema.BreakdownKey]float64)
	for _, table := range schema.AllWeightTables {
		tableWeights := make(map[schema.BreakdownKey]float64)
		maps.Copy(tableWeights, schema.GetDefaultWeights(table))
		if custom, ok := cfg.CustomWeights[table]; ok {
			maps.Copy(tableWeights, custom)
		}
		if err := ValidateWeights(table, tableWeights); err != nil {
			return err
		}
		cfg.ComputedWeights[table] = tableWeights
	}

	return nil
}

// processBucketThresholds resolves the relevance thresholds. The
// --relevance-thresholds flag takes precedence over the config file.
func processBucketThresholds(cfg *Config, input *ConfigRawInput) error {
	thresholds := schema.DefaultBucketThresholds()

	if input.Thresholds.Critical != nil {
		thresholds[schema.CriticalBucket] = *input.Thresholds.Critical
	}
	if input.Thresholds.Important != nil {
		thresholds[schema.ImportantBucket] = *input.Thresholds.Important
	}
	if input.Thresholds.Optional != nil {
		thresholds[schema.OptionalBucket] = *input.Thresholds.Optional
	}

	if input.ThresholdsStr != "" && input.ThresholdsStr != DefaultBucketThresholds {
		parsed, err := parseBucketThresholdsString(input.ThresholdsStr)
		if err != nil {
			return fmt.Errorf("invalid --relevance-thresholds format: %w", err)
		}
		maps.Copy(thresholds, parsed)
	}

	for bucket, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold for bucket %s must be between 0.0 and 1.0 (received %.2f)", bucket, v)
		}
	}
	if thresholds[schema.OptionalBucket] > thresholds[schema.ImportantBucket] ||
		thresholds[schema.ImportantBucket] > thresholds[schema.CriticalBucket] {
		return fmt.Errorf("relevance thresholds must satisfy optional <= important <= critical")
	}

	cfg.BucketThresholds = thresholds
	return nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// resolveChangeSource picks the diff file or the git refs that define the change.
func resolveChangeSource(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	cfg.DiffPath = strings.TrimSpace(input.Diff)
	cfg.BaseRef = strings.TrimSpace(input.BaseRef)
	cfg.TargetRef = strings.TrimSpace(input.TargetRef)
	cfg.ChangeID = strings.TrimSpace(input.ChangeID)

	if cfg.DiffPath != "" && cfg.BaseRef != "" {
		return fmt.Errorf("--diff and --base-ref are mutually exclusive")
	}
	if cfg.TargetRef != "" && cfg.BaseRef == "" {
		return fmt.Errorf("must specify --base-ref when --target-ref is set")
	}
	repo := strings.TrimSpace(input.Repo)
	if repo == "" {
		repo = "."
	}
	if !cfg.UsesGit() {
		cfg.RepoPath = repo
		return nil
	}
	if cfg.TargetRef == "" {
		cfg.TargetRef = "HEAD"
	}

	absRepo, err := filepath.Abs(repo)
	if err != nil {
		return err
	}
	gitRoot, err := client.GetRepoRoot(ctx, filepath.Clean(absRepo))
	if err != nil {
		return err
	}
	cfg.RepoPath = gitRoot
	return nil
}

// parseBucketThresholdsString parses a string like "critical:0.8,important:0.5,optional:0.2"
// into a map of Bucket to float64.
func parseBucketThresholdsString(s string) (map[schema.Bucket]float64, error) {
	thresholds := make(map[schema.Bucket]float64)

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		keyValue := strings.Split(part, ":")
		if len(keyValue) != 2 {
			return nil, fmt.Errorf("invalid threshold format '%s', expected 'bucket:value'", part)
		}

		bucketStr := strings.ToLower(strings.TrimSpace(keyValue[0]))
		valueStr := strings.TrimSpace(keyValue[1])

		var bucket schema.Bucket
		switch bucketStr {
		case "critical":
			bucket = schema.CriticalBucket
		case "important":
			bucket = schema.ImportantBucket
		case "optional":
			bucket = schema.OptionalBucket
		default:
			return nil, fmt.Errorf("invalid bucket '%s', must be critical, important, or optional", bucketStr)
		}

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold value '%s' for bucket %s: %w", valueStr, bucket, err)
		}

		thresholds[bucket] = value
	}

	return thresholds, nil
}

// RevalidatePlan applies per-request planning overrides to a cloned config.
// A zero coverage target, an empty budget and a negative depth keep the current values.
func RevalidatePlan(cfg *Config, coverageTarget float64, timeBudget string, maxDepth int) error {
	if coverageTarget != 0 {
		if coverageTarget < 0 || coverageTarget > 1 {
			return fmt.Errorf("coverage-target must be in (0, 1] (received %.3f)", coverageTarget)
		}
		cfg.CoverageTarget = coverageTarget
	}
	if strings.TrimSpace(timeBudget) != "" {
		budget, err := parseOptionalDuration("time-budget", timeBudget, 0)
		if err != nil {
			return err
		}
		cfg.TimeBudget = budget
	}
	if maxDepth >= 0 {
		if maxDepth > MaxTraversalDepth {
			return fmt.Errorf("max-depth must be between 0 and %d (received %d)", MaxTraversalDepth, maxDepth)
		}
		cfg.MaxDepth = maxDepth
	}
	return nil
}

// RevalidateMaintenance applies per-request maintenance thresholds to a cloned config.
// Negative values keep the current settings.
func RevalidateMaintenance(cfg *Config, obsoleteThreshold int, flakyThreshold float64) error {
	if obsoleteThreshold >= 0 {
		cfg.ObsoleteThreshold = obsoleteThreshold
	}
	if flakyThreshold >= 0 {
		if flakyThreshold == 0 || flakyThreshold > 1 {
			return fmt.Errorf("flaky-threshold must be in (0, 1] (received %.3f)", flakyThreshold)
		}
		cfg.FlakyThreshold = flakyThreshold
	}
	return nil
}
