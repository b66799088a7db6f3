package schema

import (
	"sort"
	"strings"
	"time"
)

// Signature element prefixes.
const (
	componentPrefix = "component:"
	featurePrefix   = "feature:"
)

// Component is a logical code module used as the unit of impact tracking.
type Component struct {
	ID            string      `yaml:"id" json:"id" validate:"required"`
	Paths         []string    `yaml:"paths" json:"paths" validate:"dive,required"`
	Criticality   Criticality `yaml:"criticality" json:"criticality" validate:"omitempty,oneof=low medium high critical"`
	DefectDensity *float64    `yaml:"defect_density" json:"defect_density,omitempty" validate:"omitempty,gte=0,lte=1"` // nil means no history
	DependsOn     []string    `yaml:"depends_on" json:"depends_on,omitempty"`
	Features      []string    `yaml:"features" json:"features,omitempty"`
}

// CriticalityWeight maps the criticality tag onto [0,1], defaulting to medium.
func (c Component) CriticalityWeight() float64 {
	if w, ok := CriticalityWeights[c.Criticality]; ok {
		return w
	}
	return CriticalityWeights[MediumCriticality]
}

// HasHistory reports whether the component has a known defect density.
func (c Component) HasHistory() bool {
	return c.DefectDensity != nil
}

// TestCase describes an existing test known to the repository.
type TestCase struct {
	ID        string        `yaml:"id" json:"id" validate:"required"`
	Covers    []string      `yaml:"covers" json:"covers,omitempty"`
	Features  []string      `yaml:"features" json:"features,omitempty"`
	Duration  time.Duration `yaml:"duration" json:"duration_ns" validate:"gte=0"`
	DependsOn []string      `yaml:"depends_on" json:"depends_on,omitempty"`
	Isolated  bool          `yaml:"isolated" json:"isolated,omitempty"`
	Resources []string      `yaml:"resources" json:"resources,omitempty"` // exclusive resources; tests sharing one conflict
	Type      TestType      `yaml:"type" json:"type,omitempty" validate:"omitempty,oneof=unit integration e2e"`
}

// Signature returns the coverage signature as sorted, prefixed elements.
func (t TestCase) Signature() []string {
	sig := make([]string, 0, len(t.Covers)+len(t.Features))
	for _, c := range t.Covers {
		sig = append(sig, ComponentElement(c))
	}
	for _, f := range t.Features {
		sig = append(sig, FeatureElement(f))
	}
	return UniqueSorted(sig)
}

// ComponentElement returns the signature element for a component.
func ComponentElement(id string) string { return componentPrefix + id }

// FeatureElement returns the signature element for a feature.
func FeatureElement(name string) string { return featurePrefix + name }

// IsFeatureElement reports whether a signature element names a feature.
func IsFeatureElement(elem string) bool { return strings.HasPrefix(elem, featurePrefix) }

// Catalog is the repository of components and tests.
type Catalog struct {
	Components []Component `yaml:"components" json:"components" validate:"dive"`
	Tests      []TestCase  `yaml:"tests" json:"tests" validate:"dive"`
}

// ComponentIndex returns the components keyed by ID.
func (c *Catalog) ComponentIndex() map[string]Component {
	idx := make(map[string]Component, len(c.Components))
	for _, comp := range c.Components {
		idx[comp.ID] = comp
	}
	return idx
}

// TestIndex returns the tests keyed by ID.
func (c *Catalog) TestIndex() map[string]TestCase {
	idx := make(map[string]TestCase, len(c.Tests))
	for _, t := range c.Tests {
		idx[t.ID] = t
	}
	return idx
}

// SortedTests returns a copy of the tests ordered by ID.
func (c *Catalog) SortedTests() []TestCase {
	tests := make([]TestCase, len(c.Tests))
	copy(tests, c.Tests)
	sort.Slice(tests, func(i, j int) bool { return tests[i].ID < tests[j].ID })
	return tests
}

// GraphNode is a node of the condensed component graph.
// It is either an AtomicComponent or a CollapsedComponentGroup.
type GraphNode interface {
	NodeID() string
	MemberIDs() []string
	graphNode()
}

// AtomicComponent is a component that is not part of any dependency cycle.
type AtomicComponent struct {
	Component
}

// NodeID implements GraphNode.
func (a AtomicComponent) NodeID() string { return a.ID }

// MemberIDs implements GraphNode.
func (a AtomicComponent) MemberIDs() []string { return []string{a.ID} }

func (AtomicComponent) graphNode() {}

// CollapsedComponentGroup is a pseudo-component standing in for a dependency cycle.
type CollapsedComponentGroup struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

// NodeID implements GraphNode.
func (g CollapsedComponentGroup) NodeID() string { return g.ID }

// MemberIDs implements GraphNode.
func (g CollapsedComponentGroup) MemberIDs() []string { return g.Members }

func (CollapsedComponentGroup) graphNode() {}
