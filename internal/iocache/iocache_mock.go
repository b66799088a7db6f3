package iocache

import (
	"context"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/mock"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetDerivedStore implements the CacheManager interface.
func (m *MockCacheManager) GetDerivedStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetHistoryStore implements the CacheManager interface.
func (m *MockCacheManager) GetHistoryStore() contract.HistoryStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.HistoryStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, int, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.Int(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version int, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// BeginRun implements the HistoryStore interface.
func (m *MockHistoryStore) BeginRun(ctx context.Context, runID string, changeID string, startTime time.Time, configParams map[string]any) error {
	args := m.Called(ctx, runID, changeID, startTime, configParams)
	return args.Error(0)
}

// EndRun implements the HistoryStore interface.
func (m *MockHistoryStore) EndRun(ctx context.Context, runID string, endTime time.Time, coreTests, extendedTests int, budgetExceeded bool) error {
	args := m.Called(ctx, runID, endTime, coreTests, extendedTests, budgetExceeded)
	return args.Error(0)
}

// AppendExecutions implements the HistoryStore interface.
func (m *MockHistoryStore) AppendExecutions(ctx context.Context, records []schema.ExecutionRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

// Snapshot implements the HistoryStore interface.
func (m *MockHistoryStore) Snapshot(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// ReadExecutions implements the HistoryStore interface.
func (m *MockHistoryStore) ReadExecutions(ctx context.Context, after, upTo int64, limit int) ([]schema.ExecutionRecord, error) {
	args := m.Called(ctx, after, upTo, limit)
	records, _ := args.Get(0).([]schema.ExecutionRecord)
	return records, args.Error(1)
}

// GetTestStats implements the HistoryStore interface.
func (m *MockHistoryStore) GetTestStats(ctx context.Context) (map[string]schema.TestStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(map[string]schema.TestStats)
	return stats, args.Error(1)
}

// UpdateTestStats implements the HistoryStore interface.
func (m *MockHistoryStore) UpdateTestStats(ctx context.Context, stats schema.TestStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

// GetStatus implements the HistoryStore interface.
func (m *MockHistoryStore) GetStatus() (schema.HistoryStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// GetAllPlanRuns implements the HistoryStore interface.
func (m *MockHistoryStore) GetAllPlanRuns() ([]schema.PlanRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.PlanRunRecord)
	return runs, args.Error(1)
}

// Close implements the HistoryStore interface.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
