// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/retest/schema"
)

// GitClient defines the Git operations needed to build a CodeChange from two refs.
// This allows change ingestion to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// GetRepoHash returns the commit hash that a reference resolves to.
	GetRepoHash(ctx context.Context, repoPath string, ref string) (string, error)

	// GetDiff returns the unified diff between two references.
	GetDiff(ctx context.Context, repoPath string, baseRef string, targetRef string) ([]byte, error)

	// GetFileLineCount returns the number of lines of a file at a reference.
	GetFileLineCount(ctx context.Context, repoPath string, ref string, path string) (int, error)
}

// ComponentMapper resolves repository paths to the components that own them.
// Implementations may be slow or remote, so every call takes a context.
type ComponentMapper interface {
	// Resolve returns the IDs of the components owning path. An empty
	// result means the path is unmapped.
	Resolve(ctx context.Context, path string) ([]string, error)

	// ComponentsUnder returns the IDs of every component with a path under prefix.
	ComponentsUnder(ctx context.Context, prefix string) ([]string, error)
}

// Predictor estimates the failure probability of one test for one change.
type Predictor interface {
	Predict(ctx context.Context, req schema.PredictionRequest) (schema.Prediction, error)
}

// CacheManager defines the interface for managing the backing stores.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetDerivedStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for derived-data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryStore defines the append-only execution log, rolling test statistics
// and the plan run registry.
type HistoryStore interface {
	// BeginRun registers a new plan run.
	BeginRun(ctx context.Context, runID string, changeID string, startTime time.Time, configParams map[string]any) error

	// EndRun updates the plan run with completion data.
	EndRun(ctx context.Context, runID string, endTime time.Time, coreTests, extendedTests int, budgetExceeded bool) error

	// AppendExecutions appends records, ignoring record IDs already present.
	// It returns the number of records actually inserted.
	AppendExecutions(ctx context.Context, records []schema.ExecutionRecord) (int, error)

	// Snapshot returns the high-water sequence number of the execution log.
	Snapshot(ctx context.Context) (int64, error)

	// ReadExecutions returns at most limit records with after < seq <= upTo, ordered by seq.
	ReadExecutions(ctx context.Context, after, upTo int64, limit int) ([]schema.ExecutionRecord, error)

	// GetTestStats returns the rolling statistics of every known test.
	GetTestStats(ctx context.Context) (map[string]schema.TestStats, error)

	// UpdateTestStats writes stats if the stored version equals stats.Version,
	// and returns ErrVersionConflict otherwise.
	UpdateTestStats(ctx context.Context, stats schema.TestStats) error

	// GetStatus returns status information about the history store.
	GetStatus() (schema.HistoryStatus, error)

	// GetAllPlanRuns returns every row of the plan run registry.
	GetAllPlanRuns() ([]schema.PlanRunRecord, error)

	// Close closes the underlying connection.
	Close() error
}
