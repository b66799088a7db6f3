package schema

import "time"

// RelevanceScore is the derived relevance of one test to one change.
type RelevanceScore struct {
	TestID        string                   `json:"test_id"`
	Score         float64                  `json:"score"`
	RuleScore     float64                  `json:"rule_score"`
	Bucket        Bucket                   `json:"bucket"`
	Breakdown     map[BreakdownKey]float64 `json:"breakdown"`
	PredictorUsed bool                     `json:"predictor_used"`
}

// PrioritizedTest is a candidate test placed in execution order.
type PrioritizedTest struct {
	TestID    string                   `json:"test_id"`
	Priority  float64                  `json:"priority"`
	Relevance float64                  `json:"relevance"`
	Bucket    Bucket                   `json:"bucket"`
	Layer     int                      `json:"layer"`
	Duration  time.Duration            `json:"duration_ns"`
	Pulled    bool                     `json:"pulled,omitempty"` // added as a prerequisite of another test
	MustRun   bool                     `json:"must_run,omitempty"`
	Breakdown map[BreakdownKey]float64 `json:"breakdown,omitempty"`
}

// PrioritizedPlan is the output of the prioritizer.
type PrioritizedPlan struct {
	Ordered        []PrioritizedTest `json:"ordered"`
	Dropped        []string          `json:"dropped,omitempty"`
	BudgetExceeded bool              `json:"budget_exceeded"`
	BudgetOverrun  time.Duration     `json:"budget_overrun_ns"`
	Warnings       []Warning         `json:"warnings"`
}

// TestGroup is an ordered bucket of tests assigned to one worker.
type TestGroup struct {
	ID        string        `json:"id"`
	Stage     int           `json:"stage"`
	Tests     []string      `json:"tests"`
	Duration  time.Duration `json:"duration_ns"`
	Serial    bool          `json:"serial,omitempty"`
	DependsOn []string      `json:"depends_on,omitempty"`
}

// RegressionSuite is the plan handed to the execution collaborator.
type RegressionSuite struct {
	ChangeID           string        `json:"change_id"`
	CoreTests          []string      `json:"core_tests"`
	ExtendedTests      []string      `json:"extended_tests"`
	DroppedTests       []string      `json:"dropped_tests,omitempty"`
	ParallelGroups     []TestGroup   `json:"parallel_groups"`
	EstimatedDuration  time.Duration `json:"estimated_duration_ns"`
	CoveragePercentage float64       `json:"coverage_percentage"`
	BudgetExceeded     bool          `json:"budget_exceeded"`
	BudgetOverrun      time.Duration `json:"budget_overrun_ns,omitempty"`
	Warnings           []Warning     `json:"warnings"`
}

// HasWarning reports whether the suite carries a warning with the given code.
func (s *RegressionSuite) HasWarning(code WarningCode) bool {
	for _, w := range s.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// PlanRun holds run metadata kept outside the deterministic suite body.
type PlanRun struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// PlanResult bundles a suite with everything needed to explain it.
type PlanResult struct {
	Run     PlanRun           `json:"run"`
	Suite   RegressionSuite   `json:"suite"`
	Impact  ImpactAnalysis    `json:"impact"`
	Scores  []RelevanceScore  `json:"scores,omitempty"`
	Ordered []PrioritizedTest `json:"ordered,omitempty"`
}

// PredictionRequest is sent to the external failure predictor for one test.
type PredictionRequest struct {
	TestID     string   `json:"test_id"`
	ChangeID   string   `json:"change_id"`
	Components []string `json:"components"`
	Features   []string `json:"features"`
	RuleScore  float64  `json:"rule_score"`
}

// Prediction is a failure probability with the predictor's confidence in it.
type Prediction struct {
	Probability float64 `json:"probability" validate:"gte=0,lte=1"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// CheckResult is the outcome of the CI gate.
type CheckResult struct {
	Passed         bool     `json:"passed"`
	Violations     []string `json:"violations,omitempty"`
	CoverageTarget float64  `json:"coverage_target"`
	Coverage       float64  `json:"coverage"`
	BudgetExceeded bool     `json:"budget_exceeded"`
	Degraded       bool     `json:"degraded"`
}
