//go:build integration || database

package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	// sharedRetestPath holds the path to a shared retest binary built once for all tests.
	sharedRetestPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getRetestBinary returns the path to the retest binary, building it once if needed.
func getRetestBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "retest-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		retestPath := filepath.Join(tempDir, "retest")
		buildCmd := exec.Command("go", "build", "-o", retestPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build retest: %v", err))
		}

		sharedRetestPath = retestPath
	})

	return sharedRetestPath
}

const shopCatalog = `components:
  - id: auth
    paths: [src/auth]
  - id: payments
    paths: [src/payments]
    depends_on: [auth]
    criticality: critical
  - id: search
    paths: [src/search]
tests:
  - id: test_auth
    covers: [auth]
    duration: 1m
  - id: test_pay
    covers: [payments]
    duration: 2m
  - id: test_search
    covers: [search]
    duration: 1m
`

const paymentsDiff = `diff --git a/src/payments/charge.go b/src/payments/charge.go
index 1111111..2222222 100644
--- a/src/payments/charge.go
+++ b/src/payments/charge.go
@@ -1,3 +1,4 @@
 package payments
+func Refund() {}
 func Charge() {}
 // end
`

const paymentResults = `[
  {"test_id": "test_pay", "run_id": "run-1", "outcome": "fail", "duration_ms": 118000, "defect_correlated": true, "recorded_at": "2026-01-02T10:00:00Z"},
  {"test_id": "test_auth", "run_id": "run-1", "outcome": "pass", "duration_ms": 61000, "recorded_at": "2026-01-02T10:02:00Z"},
  {"test_id": "", "run_id": "run-1", "outcome": "pass", "recorded_at": "2026-01-02T10:03:00Z"}
]
`

// writeFixtures writes a catalog, a diff and execution results into a temp dir.
func writeFixtures(t *testing.T) (dir, catalog, diff, results string) {
	t.Helper()
	dir = t.TempDir()
	catalog = filepath.Join(dir, "retest.yaml")
	diff = filepath.Join(dir, "change.patch")
	results = filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(catalog, []byte(shopCatalog), 0o644))
	require.NoError(t, os.WriteFile(diff, []byte(paymentsDiff), 0o644))
	require.NoError(t, os.WriteFile(results, []byte(paymentResults), 0o644))
	return dir, catalog, diff, results
}

// runRetest runs the binary in dir with extra environment entries and returns its stdout.
func runRetest(t *testing.T, dir string, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getRetestBinary(), args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	output, err := cmd.Output()
	if err != nil {
		var stderr []byte
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = exitErr.Stderr
		}
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), string(output), string(stderr))
	}
	return string(output), err
}
