package contract

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/retest/schema"
)

// Bucket label constants.
const (
	CriticalValue  = "Critical"  // Critical value
	ImportantValue = "Important" // Important value
	OptionalValue  = "Optional"  // Optional value
	ExcludedValue  = "Excluded"  // Excluded value
)

// Color variables for console output.
var (
	CriticalColor  = color.New(color.FgRed, color.Bold) // criticalColor represents standard danger.
	ImportantColor = color.New(color.FgYellow)          // importantColor represents standard caution, not bold.
	OptionalColor  = color.New(color.FgCyan)            // optionalColor represents informational signal.
	ExcludedColor  = color.New(color.FgHiBlack)
	WarnColor      = color.New(color.FgMagenta, color.Bold)
)

// GetPlainLabel returns a plain text label for a relevance bucket. This is
// the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(bucket schema.Bucket) string {
	switch bucket {
	case schema.CriticalBucket:
		return CriticalValue
	case schema.ImportantBucket:
		return ImportantValue
	case schema.OptionalBucket:
		return OptionalValue
	default:
		return ExcludedValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(bucket schema.Bucket) string {
	text := GetPlainLabel(bucket)

	switch text {
	case CriticalValue:
		return CriticalColor.Sprint(text)
	case ImportantValue:
		return ImportantColor.Sprint(text)
	case OptionalValue:
		return OptionalColor.Sprint(text)
	default:
		return ExcludedColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It returns os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for derived-data storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".retest_cache.db"
	}
	return filepath.Join(homeDir, ".retest_cache.db")
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for execution history.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".retest_history.db"
	}
	return filepath.Join(homeDir, ".retest_history.db")
}

// NormalizeRepoPath converts a user or diff supplied path into the slash-separated,
// repository-relative form used by the catalog. It rejects paths that escape the root.
func NormalizeRepoPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path must be relative to the repository: %s", p)
	}

	cleanPath := path.Clean(p)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return "", fmt.Errorf("path is outside repository: %s", p)
	}
	return strings.TrimPrefix(cleanPath, "./"), nil
}

// TruncatePath truncates a path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to ensure there's space for both the "..." prefix and at least one character of content.
func TruncatePath(p string, maxWidth int) string {
	runes := []rune(p)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return p
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
