package contract

import (
	"context"

	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	mockArgs := []any{ctx, repoPath}
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	root, _ := ret.Get(0).(string)
	return root, ret.Error(1)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string, ref string) (string, error) {
	ret := m.Called(ctx, repoPath, ref)
	hash, _ := ret.Get(0).(string)
	return hash, ret.Error(1)
}

// GetDiff implements the GitClient interface.
func (m *MockGitClient) GetDiff(ctx context.Context, repoPath string, baseRef string, targetRef string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, baseRef, targetRef)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetFileLineCount implements the GitClient interface.
func (m *MockGitClient) GetFileLineCount(ctx context.Context, repoPath string, ref string, path string) (int, error) {
	ret := m.Called(ctx, repoPath, ref, path)
	n, _ := ret.Get(0).(int)
	return n, ret.Error(1)
}

// MockComponentMapper is a mock implementation of ComponentMapper for testing.
type MockComponentMapper struct {
	mock.Mock
}

var _ ComponentMapper = &MockComponentMapper{}

// Resolve implements the ComponentMapper interface.
func (m *MockComponentMapper) Resolve(ctx context.Context, path string) ([]string, error) {
	ret := m.Called(ctx, path)
	ids, _ := ret.Get(0).([]string)
	return ids, ret.Error(1)
}

// ComponentsUnder implements the ComponentMapper interface.
func (m *MockComponentMapper) ComponentsUnder(ctx context.Context, prefix string) ([]string, error) {
	ret := m.Called(ctx, prefix)
	ids, _ := ret.Get(0).([]string)
	return ids, ret.Error(1)
}

// MockPredictor is a mock implementation of Predictor for testing.
type MockPredictor struct {
	mock.Mock
}

var _ Predictor = &MockPredictor{}

// Predict implements the Predictor interface.
func (m *MockPredictor) Predict(ctx context.Context, req schema.PredictionRequest) (schema.Prediction, error) {
	ret := m.Called(ctx, req)
	p, _ := ret.Get(0).(schema.Prediction)
	return p, ret.Error(1)
}
