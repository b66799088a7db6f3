package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader handles the common pattern of creating a CSV writer,
// writing a header, and writing data rows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	return writeRows(csvWriter)
}

// createFormatters creates the common formatter closures used across multiple output types.
func createFormatters(precision int) (fmtFloat func(float64) string, intFmt string) {
	numFmt := "%.*f"
	intFmt = "%d"
	fmtFloat = func(v float64) string {
		return fmt.Sprintf(numFmt, precision, v)
	}
	return fmtFloat, intFmt
}

// bucketLabel returns the colored label for tables when colors are on.
func bucketLabel(bucket schema.Bucket, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorLabel(bucket)
	}
	return contract.GetPlainLabel(bucket)
}

// formatDuration keeps durations short for table cells.
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d >= time.Second:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

const topNFactors = 3

// formatTopBreakdown lists the strongest contributors of a breakdown, strongest first.
func formatTopBreakdown(breakdown map[schema.BreakdownKey]float64) string {
	type factor struct {
		key   schema.BreakdownKey
		value float64
	}
	var factors []factor
	for k, v := range breakdown {
		if v != 0 {
			factors = append(factors, factor{key: k, value: v})
		}
	}
	if len(factors) == 0 {
		return "Not applicable"
	}

	sort.Slice(factors, func(i, j int) bool {
		ai, aj := math.Abs(factors[i].value), math.Abs(factors[j].value)
		if ai != aj {
			return ai > aj
		}
		return factors[i].key < factors[j].key
	})

	limit := min(len(factors), topNFactors)
	parts := make([]string, 0, limit)
	for _, f := range factors[:limit] {
		parts = append(parts, string(f.key))
	}
	return strings.Join(parts, " > ")
}

// writeWarnings prints plan or report warnings below a table.
func writeWarnings(w io.Writer, warnings []schema.Warning, cfg *contract.Config) error {
	for _, warn := range warnings {
		code := string(warn.Code)
		if cfg.UseColors {
			code = contract.WarnColor.Sprint(code)
		}
		line := fmt.Sprintf("⚠️  %s: %s", code, warn.Message)
		if len(warn.Subjects) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(warn.Subjects, ", "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
