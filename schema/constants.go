// Package schema has models, enums and default weights for all parts of retest.
package schema

// Custom string types for type safety.
type (
	// BreakdownKey represents keys used in scoring breakdowns.
	BreakdownKey string

	// WeightTable names one of the weighted formulas (relevance, priority, risk).
	WeightTable string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for history and caching.
	DatabaseBackend string

	// Bucket is the relevance class of a test for a given change.
	Bucket string

	// Criticality is the business criticality tag of a component.
	Criticality string

	// Outcome is the result of a single test execution.
	Outcome string

	// WarningCode identifies a degraded-mode condition reported in the output.
	WarningCode string

	// TestType is the recommended kind of test for a coverage gap.
	TestType string

	// MaintenanceReason explains why a test was flagged by the maintenance engine.
	MaintenanceReason string
)

// Relevance factor keys.
const (
	BreakdownComponentOverlap BreakdownKey = "component_overlap"
	BreakdownFeatureOverlap   BreakdownKey = "feature_overlap"
	BreakdownHistory          BreakdownKey = "history_correlation"
	BreakdownRiskAlignment    BreakdownKey = "risk_alignment"
	BreakdownCost             BreakdownKey = "cost"
)

// Priority factor keys.
const (
	BreakdownFaultProbability BreakdownKey = "fault_probability"
	BreakdownCoverage         BreakdownKey = "coverage"
	BreakdownInverseTime      BreakdownKey = "inverse_time"
	BreakdownBusiness         BreakdownKey = "business_criticality"
	BreakdownDependencyBias   BreakdownKey = "dependency_bias"
)

// Risk factor keys.
const (
	BreakdownChurn         BreakdownKey = "churn"
	BreakdownDefectDensity BreakdownKey = "defect_density"
	BreakdownCriticality   BreakdownKey = "criticality"
)

// Extra breakdown keys that are reported but not weighted.
const (
	BreakdownPredictor  BreakdownKey = "predictor"
	BreakdownAdjustment BreakdownKey = "adjustment"
)

// All weight tables.
const (
	RelevanceTable WeightTable = "relevance"
	PriorityTable  WeightTable = "priority"
	RiskTable      WeightTable = "risk"
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Relevance buckets.
const (
	CriticalBucket  Bucket = "critical"
	ImportantBucket Bucket = "important"
	OptionalBucket  Bucket = "optional"
	ExcludedBucket  Bucket = "excluded"
)

// Component criticality tags.
const (
	LowCriticality      Criticality = "low"
	MediumCriticality   Criticality = "medium" // default
	HighCriticality     Criticality = "high"
	CriticalCriticality Criticality = "critical"
)

// Execution outcomes.
const (
	PassOutcome  Outcome = "pass"
	FailOutcome  Outcome = "fail"
	SkipOutcome  Outcome = "skip"
	ErrorOutcome Outcome = "error"
)

// Warning codes surfaced in every plan.
const (
	WarnDataUnavailable       WarningCode = "data_unavailable"
	WarnUnmappedFile          WarningCode = "unmapped_file"
	WarnPredictorUnavailable  WarningCode = "predictor_unavailable"
	WarnDependencyCycle       WarningCode = "dependency_cycle"
	WarnTestDependencyCycle   WarningCode = "test_dependency_cycle"
	WarnBudgetExceeded        WarningCode = "budget_exceeded"
	WarnCorruptRecord         WarningCode = "corrupt_execution_record"
	WarnCoverageUnreachable   WarningCode = "coverage_target_unreachable"
	WarnConflictUnsatisfiable WarningCode = "resource_conflict_unsatisfiable"
	WarnCapacityExceeded      WarningCode = "capacity_exceeded"
	WarnMissingTestDependency WarningCode = "missing_test_dependency"
)

// Recommended test types for coverage gaps.
const (
	UnitTest        TestType = "unit"
	IntegrationTest TestType = "integration"
	E2ETest         TestType = "e2e"
)

// Maintenance reasons.
const (
	ReasonObsoleteCandidate MaintenanceReason = "obsolete_candidate"
	ReasonStabilizeFlaky    MaintenanceReason = "stabilize_flaky"
	ReasonStaleSignature    MaintenanceReason = "stale_coverage_signature"
	ReasonHighDefectYield   MaintenanceReason = "high_defect_yield"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidOutcomes lists all valid execution outcomes.
var ValidOutcomes = map[Outcome]struct{}{
	PassOutcome:  {},
	FailOutcome:  {},
	SkipOutcome:  {},
	ErrorOutcome: {},
}

// CriticalityWeights maps criticality tags onto [0,1].
var CriticalityWeights = map[Criticality]float64{
	LowCriticality:      0.25,
	MediumCriticality:   0.5,
	HighCriticality:     0.75,
	CriticalCriticality: 1.0,
}

// AllWeightTables returns every weight table in display order.
var AllWeightTables = []WeightTable{RelevanceTable, PriorityTable, RiskTable}

// GetDefaultWeights returns the default weight map for a given table.
func GetDefaultWeights(table WeightTable) map[BreakdownKey]float64 {
	switch table {
	case PriorityTable:
		return map[BreakdownKey]float64{
			BreakdownFaultProbability: 0.30,
			BreakdownCoverage:         0.20,
			BreakdownInverseTime:      0.15,
			BreakdownBusiness:         0.20,
			BreakdownDependencyBias:   0.15,
		}
	case RiskTable:
		return map[BreakdownKey]float64{
			BreakdownChurn:         0.40,
			BreakdownDefectDensity: 0.35,
			BreakdownCriticality:   0.25,
		}
	default: // RelevanceTable
		return map[BreakdownKey]float64{
			BreakdownComponentOverlap: 0.35,
			BreakdownFeatureOverlap:   0.25,
			BreakdownHistory:          0.20,
			BreakdownRiskAlignment:    0.15,
			BreakdownCost:             -0.05,
		}
	}
}

// FactorKeys returns the ordered factor keys of a weight table.
func FactorKeys(table WeightTable) []BreakdownKey {
	switch table {
	case PriorityTable:
		return []BreakdownKey{BreakdownFaultProbability, BreakdownCoverage, BreakdownInverseTime, BreakdownBusiness, BreakdownDependencyBias}
	case RiskTable:
		return []BreakdownKey{BreakdownChurn, BreakdownDefectDensity, BreakdownCriticality}
	default:
		return []BreakdownKey{BreakdownComponentOverlap, BreakdownFeatureOverlap, BreakdownHistory, BreakdownRiskAlignment, BreakdownCost}
	}
}
