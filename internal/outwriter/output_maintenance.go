package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Maintenance categories used in CSV output.
const (
	removeCategory = "remove"
	updateCategory = "update"
	addCategory    = "add"
	adjustCategory = "adjust"
)

// PrintMaintenanceReport outputs the maintenance report using the configured output format.
func PrintMaintenanceReport(report *schema.MaintenanceReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMaintenanceCSV(w, report, fmtFloat, intFmt)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMaintenanceText(w, report, cfg, fmtFloat, intFmt, duration)
		}, "Wrote text")
	}
}

func renderTable(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func writeSection(w io.Writer, title string, headers []string, data [][]string) error {
	if _, err := fmt.Fprintf(w, "%s (%d)\n", title, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		_, err := fmt.Fprintln(w, "   none")
		return err
	}
	return renderTable(w, headers, data)
}

func itemRows(items []schema.MaintenanceItem, fmtFloat func(float64) string, intFmt string) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.TestID,
			string(item.Reason),
			fmt.Sprintf(intFmt, item.Executions),
			fmt.Sprintf(intFmt, item.DefectsFound),
			fmtFloat(item.FalsePositiveRate),
			item.Detail,
		})
	}
	return rows
}

func reasonList(reasons []schema.MaintenanceReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, "|")
}

// writeMaintenanceText writes the report as one table per recommendation kind.
func writeMaintenanceText(w io.Writer, report *schema.MaintenanceReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	itemHeaders := []string{"Test", "Reason", "Executions", "Defects", "FP Rate", "Detail"}

	if err := writeSection(w, "🧹 Tests to remove", itemHeaders, itemRows(report.TestsToRemove, fmtFloat, intFmt)); err != nil {
		return err
	}
	if err := writeSection(w, "🔧 Tests to update", itemHeaders, itemRows(report.TestsToUpdate, fmtFloat, intFmt)); err != nil {
		return err
	}

	var gaps [][]string
	for _, g := range report.TestsToAdd {
		gaps = append(gaps, []string{g.ComponentID, fmtFloat(g.DefectDensity), string(g.Criticality), string(g.RecommendedType)})
	}
	if err := writeSection(w, "➕ Tests to add", []string{"Component", "Defect Density", "Criticality", "Recommended"}, gaps); err != nil {
		return err
	}

	var adjustments [][]string
	for _, a := range report.PriorityAdjustments {
		adjustments = append(adjustments, []string{a.TestID, fmtFloat(a.Delta), reasonList(a.Reasons)})
	}
	if err := writeSection(w, "⚖️  Priority adjustments", []string{"Test", "Delta", "Reasons"}, adjustments); err != nil {
		return err
	}

	if err := writeWarnings(w, report.Warnings, cfg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Scanned %d records (%d corrupt) up to cursor %d\n", report.RecordsScanned, report.CorruptRecords, report.Cursor); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Maintenance completed in %v. History backend: %s\n", duration, cfg.HistoryBackend); err != nil {
		return err
	}
	return nil
}

// writeMaintenanceCSV flattens every recommendation into one CSV.
func writeMaintenanceCSV(w io.Writer, report *schema.MaintenanceReport, fmtFloat func(float64) string, intFmt string) error {
	header := []string{"category", "subject", "reason", "executions", "defects_found", "false_positive_rate", "delta", "detail"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		var records [][]string
		addItems := func(category string, items []schema.MaintenanceItem) {
			for _, item := range items {
				records = append(records, []string{
					category,
					item.TestID,
					string(item.Reason),
					fmt.Sprintf(intFmt, item.Executions),
					fmt.Sprintf(intFmt, item.DefectsFound),
					fmtFloat(item.FalsePositiveRate),
					"",
					item.Detail,
				})
			}
		}
		addItems(removeCategory, report.TestsToRemove)
		addItems(updateCategory, report.TestsToUpdate)
		for _, g := range report.TestsToAdd {
			records = append(records, []string{
				addCategory, g.ComponentID, string(g.RecommendedType), "", "", "", "",
				fmt.Sprintf("defect_density=%s criticality=%s", fmtFloat(g.DefectDensity), g.Criticality),
			})
		}
		for _, a := range report.PriorityAdjustments {
			records = append(records, []string{adjustCategory, a.TestID, reasonList(a.Reasons), "", "", "", fmtFloat(a.Delta), ""})
		}
		for _, record := range records {
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
