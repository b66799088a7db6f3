package contract

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfGitNotAvailable skips the test if git binary is not found in PATH
func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git binary not found in PATH: %v", err)
	}
}

// TestMockGitClient_Run ensures the mock records and returns expected values.
func TestMockGitClient_Run(t *testing.T) {
	mockClient := new(MockGitClient)
	ctx := context.Background()
	expectedOutput := []byte("a1b2c3d commit message")
	expectedError := errors.New("mocked git error")

	mockClient.
		On("Run", ctx, "/path/to/repo", "log", "-1", "--oneline").
		Return(expectedOutput, expectedError).
		Once()

	out, err := mockClient.Run(ctx, "/path/to/repo", "log", "-1", "--oneline")
	assert.Equal(t, expectedOutput, out)
	assert.Equal(t, expectedError, err)
	mockClient.AssertExpectations(t)
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("one")))
	assert.Equal(t, 1, countLines([]byte("one\n")))
	assert.Equal(t, 3, countLines([]byte("a\nb\nc")))
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestLocalGitClient(t *testing.T) {
	skipIfGitNotAvailable(t)

	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "first")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc A() {}\n\nfunc B() {}\n"), 0o644))
	runGit(t, dir, "commit", "-q", "-am", "second")

	client := NewLocalGitClient()
	ctx := context.Background()

	root, err := client.GetRepoRoot(ctx, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	hash, err := client.GetRepoHash(ctx, dir, "HEAD")
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	diff, err := client.GetDiff(ctx, dir, "HEAD~1", "HEAD")
	require.NoError(t, err)
	assert.Contains(t, string(diff), "+func B() {}")

	lines, err := client.GetFileLineCount(ctx, dir, "HEAD", "a.go")
	require.NoError(t, err)
	assert.Equal(t, 5, lines)

	_, err = client.GetFileLineCount(ctx, dir, "HEAD", "missing.go")
	assert.Error(t, err)

	_, err = client.Run(ctx, filepath.Join(dir, "nope"), "status")
	assert.Error(t, err)
}
