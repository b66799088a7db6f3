package schema

import "time"

// ExecutionRecord is one append-only entry of the execution log.
type ExecutionRecord struct {
	RecordID         string    `json:"record_id"`
	Seq              int64     `json:"seq"` // assigned by the store, monotonically increasing
	TestID           string    `json:"test_id" validate:"required"`
	RunID            string    `json:"run_id"`
	ChangeID         string    `json:"change_id"`
	Outcome          Outcome   `json:"outcome" validate:"required,oneof=pass fail skip error"`
	DurationMs       int64     `json:"duration_ms" validate:"gte=0"`
	DefectCorrelated bool      `json:"defect_correlated"`
	Components       []string  `json:"components,omitempty"` // components touched by the triggering change
	RecordedAt       time.Time `json:"recorded_at"`
}

// Failed reports whether the execution did not pass.
func (r ExecutionRecord) Failed() bool {
	return r.Outcome == FailOutcome || r.Outcome == ErrorOutcome
}

// TestStats holds the rolling statistics of one test.
type TestStats struct {
	TestID          string    `json:"test_id"`
	Version         int64     `json:"version"`
	Executions      int       `json:"executions"`
	Failures        int       `json:"failures"`
	DefectsFound    int       `json:"defects_found"`
	FalsePositives  int       `json:"false_positives"`
	TotalDurationMs int64     `json:"total_duration_ms"`
	LastSeq         int64     `json:"last_seq"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Apply folds one execution into the statistics. Skipped runs are ignored
// and records at or below LastSeq are not counted twice.
func (s *TestStats) Apply(r ExecutionRecord) {
	if r.Outcome == SkipOutcome || (r.Seq > 0 && r.Seq <= s.LastSeq) {
		return
	}
	s.Executions++
	s.TotalDurationMs += r.DurationMs
	if r.Failed() {
		s.Failures++
		if r.DefectCorrelated {
			s.DefectsFound++
		} else {
			s.FalsePositives++
		}
	}
	if r.Seq > s.LastSeq {
		s.LastSeq = r.Seq
	}
}

// FailureRate is failures per execution.
func (s TestStats) FailureRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Executions)
}

// FalsePositiveRate is failures without a correlated defect per execution.
func (s TestStats) FalsePositiveRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.FalsePositives) / float64(s.Executions)
}

// DefectYield is correlated defects found per execution.
func (s TestStats) DefectYield() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.DefectsFound) / float64(s.Executions)
}

// HistorySnapshot is the immutable view of the execution log taken at run start.
type HistorySnapshot struct {
	Cursor         int64                `json:"cursor"`
	Records        []ExecutionRecord    `json:"-"`
	Stats          map[string]TestStats `json:"stats"`
	CorruptRecords int                  `json:"corrupt_records"`
}

// PlanRunRecord represents a row of the plan run registry.
type PlanRunRecord struct {
	RunID          string
	ChangeID       string
	StartTime      time.Time
	EndTime        *time.Time
	RunDurationMs  *int64
	CoreTests      int
	ExtendedTests  int
	BudgetExceeded bool
	ConfigParams   *string
}
