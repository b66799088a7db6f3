package schema

import "time"

// MaintenanceItem flags one existing test for review.
type MaintenanceItem struct {
	TestID            string            `json:"test_id"`
	Reason            MaintenanceReason `json:"reason"`
	Executions        int               `json:"executions"`
	DefectsFound      int               `json:"defects_found"`
	FalsePositiveRate float64           `json:"false_positive_rate"`
	Detail            string            `json:"detail,omitempty"`
}

// CoverageGap is a defect-prone component that no test covers.
type CoverageGap struct {
	ComponentID     string      `json:"component_id"`
	DefectDensity   float64     `json:"defect_density"`
	Criticality     Criticality `json:"criticality"`
	RecommendedType TestType    `json:"recommended_type"`
}

// PriorityAdjustment is the score nudge fed back into relevance scoring.
type PriorityAdjustment struct {
	TestID  string              `json:"test_id"`
	Delta   float64             `json:"delta"`
	Reasons []MaintenanceReason `json:"reasons"`
}

// MaintenanceReport is the output of the maintenance engine.
type MaintenanceReport struct {
	GeneratedAt         time.Time            `json:"generated_at"`
	Cursor              int64                `json:"cursor"`
	RecordsScanned      int                  `json:"records_scanned"`
	CorruptRecords      int                  `json:"corrupt_records"`
	TestsToRemove       []MaintenanceItem    `json:"tests_to_remove"`
	TestsToUpdate       []MaintenanceItem    `json:"tests_to_update"`
	TestsToAdd          []CoverageGap        `json:"tests_to_add"`
	PriorityAdjustments []PriorityAdjustment `json:"priority_adjustments"`
	Warnings            []Warning            `json:"warnings"`
}

// AdjustmentMap returns the priority adjustments keyed by test ID.
func (r *MaintenanceReport) AdjustmentMap() map[string]float64 {
	m := make(map[string]float64, len(r.PriorityAdjustments))
	for _, a := range r.PriorityAdjustments {
		m[a.TestID] = a.Delta
	}
	return m
}
