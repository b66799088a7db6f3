package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFormula(t *testing.T) {
	tests := []struct {
		name     string
		factors  []weightFactor
		expected string
	}{
		{
			name: "mixed signs",
			factors: []weightFactor{
				{Key: schema.BreakdownComponentOverlap, Weight: 0.35},
				{Key: schema.BreakdownFeatureOverlap, Weight: 0},
				{Key: schema.BreakdownCost, Weight: -0.05},
			},
			expected: "0.35*component_overlap - 0.05*cost",
		},
		{
			name:     "leading negative",
			factors:  []weightFactor{{Key: schema.BreakdownCost, Weight: -0.1}, {Key: schema.BreakdownChurn, Weight: 0.5}},
			expected: "-0.10*cost + 0.50*churn",
		},
		{name: "empty", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFormula(tt.factors))
		})
	}
}

func TestBuildWeightsRenderModelDefaults(t *testing.T) {
	model := buildWeightsRenderModel(&contract.Config{})
	require.Len(t, model.Tables, 3)

	relevance := model.Tables[0]
	assert.Equal(t, schema.RelevanceTable, relevance.Name)
	assert.Equal(t, "0.35*component_overlap + 0.25*feature_overlap + 0.20*history_correlation + 0.15*risk_alignment - 0.05*cost", relevance.Formula)
	for _, f := range relevance.Factors {
		assert.False(t, f.Custom)
	}
	assert.Equal(t, schema.DefaultBucketThresholds(), model.Thresholds)
}

func TestBuildWeightsRenderModelCustom(t *testing.T) {
	computed := schema.GetDefaultWeights(schema.RiskTable)
	computed[schema.BreakdownChurn] = 0.5
	computed[schema.BreakdownDefectDensity] = 0.25
	cfg := &contract.Config{
		CustomWeights: map[schema.WeightTable]map[schema.BreakdownKey]float64{
			schema.RiskTable: {schema.BreakdownChurn: 0.5, schema.BreakdownDefectDensity: 0.25},
		},
		ComputedWeights: map[schema.WeightTable]map[schema.BreakdownKey]float64{
			schema.RiskTable: computed,
		},
	}

	model := buildWeightsRenderModel(cfg)
	risk := model.Tables[2]
	assert.Equal(t, "0.50*churn + 0.25*defect_density + 0.25*criticality", risk.Formula)
	assert.True(t, risk.Factors[0].Custom)
	assert.False(t, risk.Factors[2].Custom)

	var buf bytes.Buffer
	require.NoError(t, writeWeightsText(&buf, model))
	assert.Contains(t, buf.String(), "Customized: churn, defect_density")
	assert.Contains(t, buf.String(), "🪣 Buckets: critical >= 0.80, important >= 0.50, optional >= 0.20")
}

func TestWriteWeightsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeWeightsCSV(&buf, buildWeightsRenderModel(&contract.Config{})))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// Header plus 5 relevance, 5 priority and 3 risk factors
	require.Len(t, records, 14)
	assert.Equal(t, []string{"relevance", "cost", "-0.05", "false"}, records[5])
}

func TestPrintWeightDefinitionsJSON(t *testing.T) {
	cfg := &contract.Config{Output: schema.JSONOut}
	cfg.OutputFile = filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, PrintWeightDefinitions(cfg))

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	var decoded weightsRenderModel
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Tables, 3)
	assert.InDelta(t, 0.8, decoded.Thresholds[schema.CriticalBucket], 1e-9)
}
