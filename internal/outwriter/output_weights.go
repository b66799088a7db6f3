package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// weightFactor is one term of a weighted formula.
type weightFactor struct {
	Key    schema.BreakdownKey `json:"key"`
	Weight float64             `json:"weight"`
	Custom bool                `json:"custom"`
}

// weightTableModel describes one weighted formula as rendered.
type weightTableModel struct {
	Name    schema.WeightTable `json:"name"`
	Purpose string             `json:"purpose"`
	Factors []weightFactor     `json:"factors"`
	Formula string             `json:"formula"`
}

// weightsRenderModel is everything the weights command shows.
type weightsRenderModel struct {
	Title      string                    `json:"title"`
	Tables     []weightTableModel        `json:"tables"`
	Thresholds map[schema.Bucket]float64 `json:"relevance_thresholds"`
}

var tablePurposes = map[schema.WeightTable]string{
	schema.RelevanceTable: "How likely a test is to catch a regression in this change",
	schema.PriorityTable:  "Execution order among the selected tests",
	schema.RiskTable:      "Risk carried by each impacted component",
}

var tableDisplayNames = map[schema.WeightTable]string{
	schema.RelevanceTable: "🎯 RELEVANCE",
	schema.PriorityTable:  "🚦 PRIORITY",
	schema.RiskTable:      "⚠️  RISK",
}

// PrintWeightDefinitions displays the effective weight tables and bucket thresholds.
// This is a static display that does not need a catalog or a change.
func PrintWeightDefinitions(cfg *contract.Config) error {
	model := buildWeightsRenderModel(cfg)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, model)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeWeightsCSV(w, model)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeWeightsText(w, model)
		}, "Wrote text")
	}
}

func buildWeightsRenderModel(cfg *contract.Config) *weightsRenderModel {
	model := &weightsRenderModel{
		Title:      "Retest Weight Tables",
		Thresholds: cfg.Thresholds(),
	}
	for _, table := range schema.AllWeightTables {
		weights := cfg.Weights(table)
		custom := cfg.CustomWeights[table]
		keys := schema.FactorKeys(table)

		factors := make([]weightFactor, 0, len(keys))
		for _, key := range keys {
			_, isCustom := custom[key]
			factors = append(factors, weightFactor{Key: key, Weight: weights[key], Custom: isCustom})
		}
		model.Tables = append(model.Tables, weightTableModel{
			Name:    table,
			Purpose: tablePurposes[table],
			Factors: factors,
			Formula: formatFormula(factors),
		})
	}
	return model
}

// formatFormula renders factors as a signed weighted sum, skipping zero weights.
func formatFormula(factors []weightFactor) string {
	var b strings.Builder
	for _, f := range factors {
		if f.Weight == 0 {
			continue
		}
		switch {
		case b.Len() == 0 && f.Weight < 0:
			b.WriteString("-")
		case b.Len() > 0 && f.Weight < 0:
			b.WriteString(" - ")
		case b.Len() > 0:
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%.2f*%s", math.Abs(f.Weight), f.Key)
	}
	return b.String()
}

func writeWeightsText(w io.Writer, model *weightsRenderModel) error {
	if _, err := fmt.Fprintf(w, "⚖️  %s\n%s\n\n", model.Title, strings.Repeat("=", len(model.Title)+4)); err != nil {
		return err
	}
	for _, table := range model.Tables {
		if _, err := fmt.Fprintf(w, "%s: %s\n", tableDisplayNames[table.Name], table.Purpose); err != nil {
			return err
		}
		var custom []string
		for _, f := range table.Factors {
			if f.Custom {
				custom = append(custom, string(f.Key))
			}
		}
		if _, err := fmt.Fprintf(w, "   Formula: Score = %s\n", table.Formula); err != nil {
			return err
		}
		if len(custom) > 0 {
			if _, err := fmt.Fprintf(w, "   Customized: %s\n", strings.Join(custom, ", ")); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "🪣 Buckets: critical >= %.2f, important >= %.2f, optional >= %.2f\n",
		model.Thresholds[schema.CriticalBucket], model.Thresholds[schema.ImportantBucket], model.Thresholds[schema.OptionalBucket])
	return err
}

func writeWeightsCSV(w io.Writer, model *weightsRenderModel) error {
	return writeCSVWithHeader(w, []string{"table", "factor", "weight", "custom"}, func(cw *csv.Writer) error {
		for _, table := range model.Tables {
			for _, f := range table.Factors {
				record := []string{string(table.Name), string(f.Key), fmt.Sprintf("%.2f", f.Weight), fmt.Sprintf("%t", f.Custom)}
				if err := cw.Write(record); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
		return nil
	})
}
