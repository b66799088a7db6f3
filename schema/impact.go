package schema

import "sort"

// Warning is a non-fatal, degraded-mode condition carried in every output.
type Warning struct {
	Code     WarningCode `json:"code"`
	Message  string      `json:"message"`
	Subjects []string    `json:"subjects,omitempty"`
}

// ComponentImpact is the risk-annotated impact on one component.
type ComponentImpact struct {
	ComponentID   string                   `json:"component_id"`
	Depth         int                      `json:"depth"` // 0 for modified components
	Churn         float64                  `json:"churn"`
	Risk          float64                  `json:"risk"`
	RiskBreakdown map[BreakdownKey]float64 `json:"risk_breakdown,omitempty"`
	NewComponent  bool                     `json:"new_component,omitempty"`
	Fallback      bool                     `json:"fallback,omitempty"`
	GroupID       string                   `json:"group_id,omitempty"`
}

// ImpactAnalysis is the output of the change impact analyzer.
type ImpactAnalysis struct {
	ChangeID         string                    `json:"change_id"`
	Modified         []ComponentImpact         `json:"modified_components"`
	Affected         []ComponentImpact         `json:"affected_components"`
	AffectedFeatures []string                  `json:"affected_features"`
	Groups           []CollapsedComponentGroup `json:"collapsed_groups,omitempty"`
	Degraded         bool                      `json:"degraded"`
	Warnings         []Warning                 `json:"warnings"`
}

// All returns modified and affected components ordered by ID.
func (ia *ImpactAnalysis) All() []ComponentImpact {
	all := make([]ComponentImpact, 0, len(ia.Modified)+len(ia.Affected))
	all = append(all, ia.Modified...)
	all = append(all, ia.Affected...)
	sort.Slice(all, func(i, j int) bool { return all[i].ComponentID < all[j].ComponentID })
	return all
}

// Index returns the impacted components keyed by ID.
func (ia *ImpactAnalysis) Index() map[string]ComponentImpact {
	idx := make(map[string]ComponentImpact, len(ia.Modified)+len(ia.Affected))
	for _, c := range ia.Modified {
		idx[c.ComponentID] = c
	}
	for _, c := range ia.Affected {
		idx[c.ComponentID] = c
	}
	return idx
}

// Universe returns the coverage universe of the impact as signature elements.
func (ia *ImpactAnalysis) Universe() []string {
	elems := make([]string, 0, len(ia.Modified)+len(ia.Affected)+len(ia.AffectedFeatures))
	for _, c := range ia.All() {
		elems = append(elems, ComponentElement(c.ComponentID))
	}
	for _, f := range ia.AffectedFeatures {
		elems = append(elems, FeatureElement(f))
	}
	return UniqueSorted(elems)
}
