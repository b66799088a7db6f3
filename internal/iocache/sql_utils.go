package iocache

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/retest/schema"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName ensures the name is a safe SQL identifier.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name: %s (must match pattern %s)", name, tableNamePattern)
	}
	return nil
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	if backend == schema.MySQLBackend {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// driverFor returns the database/sql driver name of a backend.
func driverFor(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported backend: %s", backend)
	}
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func bind(backend schema.DatabaseBackend, query string) string {
	if backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatTime converts a time.Time to the storage format of the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// timeColumn scans a nullable time column for any backend. SQLite stores text.
type timeColumn struct {
	backend schema.DatabaseBackend
	text    sql.NullString
	native  sql.NullTime
}

func newTimeColumn(backend schema.DatabaseBackend) *timeColumn {
	return &timeColumn{backend: backend}
}

// Dest returns the scan destination.
func (c *timeColumn) Dest() any {
	if c.backend == schema.SQLiteBackend {
		return &c.text
	}
	return &c.native
}

// Value returns the scanned time; ok is false for NULL.
func (c *timeColumn) Value() (t time.Time, ok bool, err error) {
	if c.backend != schema.SQLiteBackend {
		return c.native.Time, c.native.Valid, nil
	}
	if !c.text.Valid {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339Nano, c.text.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse time %q: %w", c.text.String, err)
	}
	return t, true, nil
}
