package iocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
)

// Table names for execution history.
const (
	planRunsTable         = "retest_plan_runs"
	executionRecordsTable = "retest_execution_records"
	testStatsTable        = "retest_test_stats"
)

// HistoryStoreImpl implements the HistoryStore interface on a SQL database.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore creates a new HistoryStore with the specified backend.
// NoneBackend yields a store that records nothing and reads an empty log.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		return &HistoryStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, GetHistoryDBFilePath())
	if err != nil {
		return nil, err
	}
	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

// createHistoryTables creates the history tables.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{planRunsTable, getCreatePlanRunsQuery(backend)},
		{executionRecordsTable, getCreateExecutionRecordsQuery(backend)},
		{testStatsTable, getCreateTestStatsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

func getCreatePlanRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(planRunsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(64) PRIMARY KEY,
				change_id VARCHAR(128) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms BIGINT,
				core_tests INT NOT NULL DEFAULT 0,
				extended_tests INT NOT NULL DEFAULT 0,
				budget_exceeded BOOLEAN NOT NULL DEFAULT FALSE,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				change_id TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms BIGINT,
				core_tests INT NOT NULL DEFAULT 0,
				extended_tests INT NOT NULL DEFAULT 0,
				budget_exceeded BOOLEAN NOT NULL DEFAULT FALSE,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				change_id TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				core_tests INTEGER NOT NULL DEFAULT 0,
				extended_tests INTEGER NOT NULL DEFAULT 0,
				budget_exceeded INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

func getCreateExecutionRecordsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(executionRecordsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				seq BIGINT AUTO_INCREMENT PRIMARY KEY,
				record_id VARCHAR(64) NOT NULL UNIQUE,
				test_id VARCHAR(255) NOT NULL,
				run_id VARCHAR(64) NOT NULL,
				change_id VARCHAR(128) NOT NULL,
				outcome VARCHAR(16) NOT NULL,
				duration_ms BIGINT NOT NULL,
				defect_correlated BOOLEAN NOT NULL,
				components TEXT NOT NULL,
				recorded_at DATETIME(6) NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				seq BIGSERIAL PRIMARY KEY,
				record_id TEXT NOT NULL UNIQUE,
				test_id TEXT NOT NULL,
				run_id TEXT NOT NULL,
				change_id TEXT NOT NULL,
				outcome TEXT NOT NULL,
				duration_ms BIGINT NOT NULL,
				defect_correlated BOOLEAN NOT NULL,
				components TEXT NOT NULL,
				recorded_at TIMESTAMPTZ NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				record_id TEXT NOT NULL UNIQUE,
				test_id TEXT NOT NULL,
				run_id TEXT NOT NULL,
				change_id TEXT NOT NULL,
				outcome TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				defect_correlated INTEGER NOT NULL,
				components TEXT NOT NULL,
				recorded_at TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

func getCreateTestStatsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(testStatsTable, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				test_id VARCHAR(255) PRIMARY KEY,
				version BIGINT NOT NULL,
				executions INT NOT NULL,
				failures INT NOT NULL,
				defects_found INT NOT NULL,
				false_positives INT NOT NULL,
				total_duration_ms BIGINT NOT NULL,
				last_seq BIGINT NOT NULL,
				updated_at DATETIME(6) NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				test_id TEXT PRIMARY KEY,
				version BIGINT NOT NULL,
				executions INT NOT NULL,
				failures INT NOT NULL,
				defects_found INT NOT NULL,
				false_positives INT NOT NULL,
				total_duration_ms BIGINT NOT NULL,
				last_seq BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				test_id TEXT PRIMARY KEY,
				version INTEGER NOT NULL,
				executions INTEGER NOT NULL,
				failures INTEGER NOT NULL,
				defects_found INTEGER NOT NULL,
				false_positives INTEGER NOT NULL,
				total_duration_ms INTEGER NOT NULL,
				last_seq INTEGER NOT NULL,
				updated_at TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

func (hs *HistoryStoreImpl) disabled() bool {
	return hs.backend == schema.NoneBackend || hs.db == nil
}

func (hs *HistoryStoreImpl) table(name string) string {
	return quoteTableName(name, hs.backend)
}

// BeginRun registers a new plan run.
func (hs *HistoryStoreImpl) BeginRun(ctx context.Context, runID string, changeID string, startTime time.Time, configParams map[string]any) error {
	if hs.disabled() {
		return nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := bind(hs.backend, fmt.Sprintf(`INSERT INTO %s (run_id, change_id, start_time, config_params) VALUES (?, ?, ?, ?)`,
		hs.table(planRunsTable)))
	if _, err := hs.db.ExecContext(ctx, query, runID, changeID, formatTime(startTime, hs.backend), string(configJSON)); err != nil {
		return fmt.Errorf("failed to insert plan run: %w", err)
	}
	return nil
}

// EndRun updates the plan run with completion data.
func (hs *HistoryStoreImpl) EndRun(ctx context.Context, runID string, endTime time.Time, coreTests, extendedTests int, budgetExceeded bool) error {
	if hs.disabled() {
		return nil
	}

	start := newTimeColumn(hs.backend)
	selectQuery := bind(hs.backend, fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, hs.table(planRunsTable)))
	if err := hs.db.QueryRowContext(ctx, selectQuery, runID).Scan(start.Dest()); err != nil {
		return fmt.Errorf("failed to get start_time for run %s: %w", runID, err)
	}
	startTime, _, err := start.Value()
	if err != nil {
		return err
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	updateQuery := bind(hs.backend, fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, core_tests = ?, extended_tests = ?, budget_exceeded = ? WHERE run_id = ?`,
		hs.table(planRunsTable)))
	if _, err := hs.db.ExecContext(ctx, updateQuery, formatTime(endTime, hs.backend), durationMs, coreTests, extendedTests, budgetExceeded, runID); err != nil {
		return fmt.Errorf("failed to update plan run: %w", err)
	}
	return nil
}

// insertIgnoreQuery returns an INSERT that skips rows with a known record_id.
func (hs *HistoryStoreImpl) insertIgnoreQuery() string {
	columns := `(record_id, test_id, run_id, change_id, outcome, duration_ms, defect_correlated, components, recorded_at)`
	values := `VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	quotedTableName := hs.table(executionRecordsTable)
	switch hs.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT IGNORE INTO %s %s %s`, quotedTableName, columns, values)
	case schema.PostgreSQLBackend:
		return bind(hs.backend, fmt.Sprintf(`INSERT INTO %s %s %s ON CONFLICT (record_id) DO NOTHING`, quotedTableName, columns, values))
	default: // SQLite
		return fmt.Sprintf(`INSERT OR IGNORE INTO %s %s %s`, quotedTableName, columns, values)
	}
}

// AppendExecutions appends records in one transaction. Records whose ID is
// already present are ignored, so replaying a result file is a no-op.
func (hs *HistoryStoreImpl) AppendExecutions(ctx context.Context, records []schema.ExecutionRecord) (int, error) {
	if hs.disabled() || len(records) == 0 {
		return 0, nil
	}

	tx, err := hs.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, hs.insertIgnoreQuery())
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, rec := range records {
		components, err := json.Marshal(rec.Components)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal components of %s: %w", rec.RecordID, err)
		}
		res, err := stmt.ExecContext(ctx,
			rec.RecordID, rec.TestID, rec.RunID, rec.ChangeID, string(rec.Outcome),
			rec.DurationMs, rec.DefectCorrelated, string(components), formatTime(rec.RecordedAt, hs.backend))
		if err != nil {
			return 0, fmt.Errorf("failed to insert execution record %s: %w", rec.RecordID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit execution records: %w", err)
	}
	return inserted, nil
}

// Snapshot returns the highest assigned sequence number, or 0 for an empty log.
func (hs *HistoryStoreImpl) Snapshot(ctx context.Context) (int64, error) {
	if hs.disabled() {
		return 0, nil
	}
	var cursor int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM %s`, hs.table(executionRecordsTable))
	if err := hs.db.QueryRowContext(ctx, query).Scan(&cursor); err != nil {
		return 0, fmt.Errorf("failed to read history cursor: %w", err)
	}
	return cursor, nil
}

// ReadExecutions returns at most limit records with after < seq <= upTo.
// Rows whose stored values cannot be decoded come back with an empty
// TestID so the caller counts them as corrupt.
func (hs *HistoryStoreImpl) ReadExecutions(ctx context.Context, after, upTo int64, limit int) ([]schema.ExecutionRecord, error) {
	if hs.disabled() || limit <= 0 {
		return nil, nil
	}

	query := bind(hs.backend, fmt.Sprintf(`
		SELECT seq, record_id, test_id, run_id, change_id, outcome, duration_ms, defect_correlated, components, recorded_at
		FROM %s WHERE seq > ? AND seq <= ? ORDER BY seq LIMIT ?`, hs.table(executionRecordsTable)))
	rows, err := hs.db.QueryContext(ctx, query, after, upTo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.ExecutionRecord
	for rows.Next() {
		var rec schema.ExecutionRecord
		var outcome, components string
		recordedAt := newTimeColumn(hs.backend)
		if err := rows.Scan(&rec.Seq, &rec.RecordID, &rec.TestID, &rec.RunID, &rec.ChangeID, &outcome,
			&rec.DurationMs, &rec.DefectCorrelated, &components, recordedAt.Dest()); err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		rec.Outcome = schema.Outcome(strings.ToLower(outcome))
		t, ok, err := recordedAt.Value()
		if err != nil || !ok {
			rec.TestID = ""
		}
		rec.RecordedAt = t
		if err := json.Unmarshal([]byte(components), &rec.Components); err != nil {
			rec.TestID = ""
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}
	return records, nil
}

// GetTestStats returns the stored rolling statistics keyed by test ID.
func (hs *HistoryStoreImpl) GetTestStats(ctx context.Context) (map[string]schema.TestStats, error) {
	stats := make(map[string]schema.TestStats)
	if hs.disabled() {
		return stats, nil
	}

	query := fmt.Sprintf(`
		SELECT test_id, version, executions, failures, defects_found, false_positives, total_duration_ms, last_seq, updated_at
		FROM %s`, hs.table(testStatsTable))
	rows, err := hs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query test stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s schema.TestStats
		updatedAt := newTimeColumn(hs.backend)
		if err := rows.Scan(&s.TestID, &s.Version, &s.Executions, &s.Failures, &s.DefectsFound,
			&s.FalsePositives, &s.TotalDurationMs, &s.LastSeq, updatedAt.Dest()); err != nil {
			return nil, fmt.Errorf("failed to scan test stats: %w", err)
		}
		if s.UpdatedAt, _, err = updatedAt.Value(); err != nil {
			return nil, err
		}
		stats[s.TestID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test stats: %w", err)
	}
	return stats, nil
}

// UpdateTestStats writes stats when the stored version still equals
// stats.Version. Version 0 means the row must not exist yet.
func (hs *HistoryStoreImpl) UpdateTestStats(ctx context.Context, stats schema.TestStats) error {
	if hs.disabled() {
		return nil
	}

	updatedAt := formatTime(stats.UpdatedAt, hs.backend)
	var res sql.Result
	var err error
	if stats.Version == 0 {
		query := hs.insertStatsQuery()
		res, err = hs.db.ExecContext(ctx, query, stats.TestID, 1, stats.Executions, stats.Failures, stats.DefectsFound,
			stats.FalsePositives, stats.TotalDurationMs, stats.LastSeq, updatedAt)
	} else {
		query := bind(hs.backend, fmt.Sprintf(`
			UPDATE %s SET version = version + 1, executions = ?, failures = ?, defects_found = ?, false_positives = ?,
				total_duration_ms = ?, last_seq = ?, updated_at = ?
			WHERE test_id = ? AND version = ?`, hs.table(testStatsTable)))
		res, err = hs.db.ExecContext(ctx, query, stats.Executions, stats.Failures, stats.DefectsFound, stats.FalsePositives,
			stats.TotalDurationMs, stats.LastSeq, updatedAt, stats.TestID, stats.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to write stats of %s: %w", stats.TestID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("stats of %s at version %d: %w", stats.TestID, stats.Version, contract.ErrVersionConflict)
	}
	return nil
}

// insertStatsQuery returns an INSERT that affects no rows if the test already has stats.
func (hs *HistoryStoreImpl) insertStatsQuery() string {
	columns := `(test_id, version, executions, failures, defects_found, false_positives, total_duration_ms, last_seq, updated_at)`
	values := `VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	quotedTableName := hs.table(testStatsTable)
	switch hs.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT IGNORE INTO %s %s %s`, quotedTableName, columns, values)
	case schema.PostgreSQLBackend:
		return bind(hs.backend, fmt.Sprintf(`INSERT INTO %s %s %s ON CONFLICT (test_id) DO NOTHING`, quotedTableName, columns, values))
	default: // SQLite
		return fmt.Sprintf(`INSERT OR IGNORE INTO %s %s %s`, quotedTableName, columns, values)
	}
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if hs.disabled() {
		return status, nil
	}

	counts := []struct {
		table string
		dest  *int
	}{
		{planRunsTable, &status.TotalRuns},
		{executionRecordsTable, &status.TotalRecords},
		{testStatsTable, &status.TotalTests},
	}
	for _, c := range counts {
		if err := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", hs.table(c.table))).Scan(c.dest); err != nil {
			return status, fmt.Errorf("failed to count rows of %s: %w", c.table, err)
		}
		status.TableSizes[c.table] = int64(*c.dest)
	}

	cursor, err := hs.Snapshot(context.Background())
	if err != nil {
		return status, err
	}
	status.Cursor = cursor

	if status.TotalRuns > 0 {
		last := newTimeColumn(hs.backend)
		lastQuery := fmt.Sprintf(`SELECT run_id, start_time FROM %s ORDER BY start_time DESC, run_id DESC LIMIT 1`, hs.table(planRunsTable))
		if err := hs.db.QueryRow(lastQuery).Scan(&status.LastRunID, last.Dest()); err != nil {
			return status, fmt.Errorf("failed to get last run: %w", err)
		}
		if status.LastRunTime, _, err = last.Value(); err != nil {
			return status, err
		}

		oldest := newTimeColumn(hs.backend)
		oldestQuery := fmt.Sprintf(`SELECT start_time FROM %s ORDER BY start_time ASC LIMIT 1`, hs.table(planRunsTable))
		if err := hs.db.QueryRow(oldestQuery).Scan(oldest.Dest()); err != nil {
			return status, fmt.Errorf("failed to get oldest run: %w", err)
		}
		if status.OldestRunTime, _, err = oldest.Value(); err != nil {
			return status, err
		}
	}

	if status.TotalRecords > 0 {
		recorded := newTimeColumn(hs.backend)
		query := fmt.Sprintf(`SELECT recorded_at FROM %s ORDER BY seq DESC LIMIT 1`, hs.table(executionRecordsTable))
		if err := hs.db.QueryRow(query).Scan(recorded.Dest()); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return status, fmt.Errorf("failed to get last record time: %w", err)
		}
		if status.LastRecordTime, _, err = recorded.Value(); err != nil {
			return status, err
		}
	}

	return status, nil
}

// GetAllPlanRuns retrieves every plan run ordered by start time.
func (hs *HistoryStoreImpl) GetAllPlanRuns() ([]schema.PlanRunRecord, error) {
	if hs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT run_id, change_id, start_time, end_time, run_duration_ms, core_tests, extended_tests, budget_exceeded, config_params
		FROM %s ORDER BY start_time, run_id`, hs.table(planRunsTable))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []schema.PlanRunRecord
	for rows.Next() {
		var run schema.PlanRunRecord
		var duration sql.NullInt64
		var params sql.NullString
		start := newTimeColumn(hs.backend)
		end := newTimeColumn(hs.backend)
		if err := rows.Scan(&run.RunID, &run.ChangeID, start.Dest(), end.Dest(), &duration,
			&run.CoreTests, &run.ExtendedTests, &run.BudgetExceeded, &params); err != nil {
			return nil, fmt.Errorf("failed to scan plan run: %w", err)
		}
		if run.StartTime, _, err = start.Value(); err != nil {
			return nil, err
		}
		endTime, ok, err := end.Value()
		if err != nil {
			return nil, err
		}
		if ok {
			run.EndTime = &endTime
		}
		if duration.Valid {
			run.RunDurationMs = &duration.Int64
		}
		if params.Valid {
			run.ConfigParams = &params.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan runs: %w", err)
	}
	return runs, nil
}
