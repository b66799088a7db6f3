// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"golang.org/x/term"
)

// LogPlanHeader prints a concise, 2-line header before a plan is rendered.
func LogPlanHeader(cfg *contract.Config, catalog *schema.Catalog, change schema.CodeChange) {
	writePlanHeader(os.Stdout, cfg, catalog, change)
}

func writePlanHeader(w io.Writer, cfg *contract.Config, catalog *schema.Catalog, change schema.CodeChange) {
	// Line 1: The change and where it came from
	_, _ = fmt.Fprintf(w, "🔎 Change: %s (Source: %s)\n", shortChangeID(change.ID), changeSource(cfg))

	// Line 2: The size of the problem being planned
	_, _ = fmt.Fprintf(w, "📚 Catalog: %d components, %d tests (%d files changed)\n",
		len(catalog.Components), len(catalog.Tests), len(change.Files))
}

func changeSource(cfg *contract.Config) string {
	switch {
	case cfg.DiffPath == "-":
		return "stdin"
	case cfg.DiffPath != "":
		return filepath.Base(cfg.DiffPath)
	case cfg.UsesGit():
		return fmt.Sprintf("%s → %s", cfg.BaseRef, cfg.TargetRef)
	default:
		return "input"
	}
}

func shortChangeID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// getMaxTableIDWidth calculates the maximum width for test IDs in table output
// based on terminal width and table configuration.
func getMaxTableIDWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank + Priority + Relevance + Label + Layer + Duration + Tier
	baseWidth := 60
	if cfg.Explain {
		baseWidth += 35
	}
	baseWidth += 20 // borders and padding

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
