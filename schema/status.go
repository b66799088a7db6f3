package schema

import "time"

// CacheStatus represents the status of the derived-data cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// HistoryStatus represents the status of the execution history store.
type HistoryStatus struct {
	Backend        string           `json:"backend"`
	Connected      bool             `json:"connected"`
	TotalRecords   int              `json:"total_records"`
	TotalTests     int              `json:"total_tests"`
	TotalRuns      int              `json:"total_runs"`
	Cursor         int64            `json:"cursor"`
	LastRunID      string           `json:"last_run_id"`
	LastRunTime    time.Time        `json:"last_run_time"`
	OldestRunTime  time.Time        `json:"oldest_run_time"`
	LastRecordTime time.Time        `json:"last_record_time"`
	TableSizes     map[string]int64 `json:"table_sizes"`
}
