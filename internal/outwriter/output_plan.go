package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Plan tiers shown in tables and CSV.
const (
	coreTier     = "core"
	extendedTier = "extended"
	droppedTier  = "dropped"
)

// PrintPlanResult outputs a regression plan, dispatching based on the output format configured.
func PrintPlanResult(result *schema.PlanResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePlanCSV(w, result, fmtFloat, intFmt)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePlanTable(w, result, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
	return nil
}

// planRow is one prioritized test with its place in the suite.
type planRow struct {
	test  schema.PrioritizedTest
	tier  string
	group string
}

// buildPlanRows returns the prioritized tests in plan order, tagged with tier and group.
func buildPlanRows(result *schema.PlanResult) []planRow {
	core := schema.ToSet(result.Suite.CoreTests)
	extended := schema.ToSet(result.Suite.ExtendedTests)
	groupOf := make(map[string]string)
	for _, g := range result.Suite.ParallelGroups {
		for _, id := range g.Tests {
			groupOf[id] = g.ID
		}
	}

	rows := make([]planRow, 0, len(result.Ordered))
	for _, t := range result.Ordered {
		tier := droppedTier
		if _, ok := core[t.TestID]; ok {
			tier = coreTier
		} else if _, ok := extended[t.TestID]; ok {
			tier = extendedTier
		}
		rows = append(rows, planRow{test: t, tier: tier, group: groupOf[t.TestID]})
	}
	return rows
}

// writePlanTable generates and writes the human-readable plan.
func writePlanTable(w io.Writer, result *schema.PlanResult, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)

	// 1. Define Headers
	headers := []string{"Rank", "Test", "Priority", "Relevance", "Label", "Layer", "Duration", "Tier"}
	if cfg.Explain {
		headers = append(headers, "Explain")
	}
	table.Header(headers)

	// 2. Configure alignment to match a minimal look
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	maxWidth := getMaxTableIDWidth(cfg)
	var data [][]string
	for i, r := range buildPlanRows(result) {
		row := []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(r.test.TestID, maxWidth),
			fmtFloat(r.test.Priority),
			fmtFloat(r.test.Relevance),
			bucketLabel(r.test.Bucket, cfg),
			fmt.Sprintf(intFmt, r.test.Layer),
			formatDuration(r.test.Duration),
			r.tier,
		}
		if cfg.Explain {
			row = append(row, formatTopBreakdown(r.test.Breakdown))
		}
		data = append(data, row)
	}

	// 4. Render the table
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	suite := &result.Suite
	for _, g := range suite.ParallelGroups {
		kind := "parallel"
		if g.Serial {
			kind = "serial"
		}
		line := fmt.Sprintf("🧪 %s (%s, %s): %s", g.ID, kind, formatDuration(g.Duration), strings.Join(g.Tests, ", "))
		if len(g.DependsOn) > 0 {
			line += fmt.Sprintf(" after %s", strings.Join(g.DependsOn, ", "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if err := writeWarnings(w, suite.Warnings, cfg); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Suite %s: %d core, %d extended, %d dropped (coverage: %s%%, estimated: %s)\n",
		shortChangeID(suite.ChangeID), len(suite.CoreTests), len(suite.ExtendedTests), len(suite.DroppedTests),
		fmtFloat(suite.CoveragePercentage), formatDuration(suite.EstimatedDuration)); err != nil {
		return err
	}
	if suite.BudgetExceeded {
		if _, err := fmt.Fprintf(w, "Time budget exceeded by %s\n", formatDuration(suite.BudgetOverrun)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Plan completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writePlanCSV writes one row per prioritized test.
func writePlanCSV(w io.Writer, result *schema.PlanResult, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"rank",
		"test_id",
		"tier",
		"priority",
		"relevance",
		"label",
		"layer",
		"duration_ms",
		"group",
		"must_run",
		"pulled",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, r := range buildPlanRows(result) {
			record := []string{
				strconv.Itoa(i + 1),
				r.test.TestID,
				r.tier,
				fmtFloat(r.test.Priority),
				fmtFloat(r.test.Relevance),
				contract.GetPlainLabel(r.test.Bucket),
				fmt.Sprintf(intFmt, r.test.Layer),
				fmt.Sprintf(intFmt, r.test.Duration.Milliseconds()),
				r.group,
				strconv.FormatBool(r.test.MustRun),
				strconv.FormatBool(r.test.Pulled),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
