// Package main provides a performance benchmarking tool for the Retest CLI.
// It generates synthetic catalogs of increasing size together with a diff that
// touches a slice of their components, then times 'retest plan' on each one.
// Each scenario runs without a cache, then several times with SQLite: the first
// successful cached run counts as cold and the rest are averaged as warm.
// Results are written to CSV for performance analysis and documentation.
//
// Prerequisites:
// - retest binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory where catalogs, diffs and the cache databases are written
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/retest/schema"
	"gopkg.in/yaml.v3"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Scenario    string
	Components  int
	Tests       int
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// Scenario describes one synthetic catalog.
type Scenario struct {
	Name       string
	Components int
	TestsPer   int // tests covering each component
	Touched    int // components modified by the diff
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Scenarios   []Scenario
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		Workers:     8,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Scenarios: []Scenario{
			{Name: "small", Components: 50, TestsPer: 2, Touched: 3},
			{Name: "medium", Components: 500, TestsPer: 3, Touched: 10},
			{Name: "large", Components: 5000, TestsPer: 3, Touched: 40},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the retest binary exists and the work dir is usable.
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("retest"); err != nil {
		return fmt.Errorf("retest binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// buildCatalog creates a layered catalog where every fifth component starts a
// new dependency chain, so that impact traversal has real depth to follow.
func buildCatalog(s Scenario) *schema.Catalog {
	catalog := &schema.Catalog{}
	for i := range s.Components {
		comp := schema.Component{
			ID:       fmt.Sprintf("comp_%04d", i),
			Paths:    []string{fmt.Sprintf("src/comp_%04d", i)},
			Features: []string{fmt.Sprintf("feature_%03d", i/10)},
		}
		if i%5 != 0 {
			comp.DependsOn = []string{fmt.Sprintf("comp_%04d", i-1)}
		}
		if i%17 == 0 {
			comp.Criticality = schema.CriticalCriticality
		}
		catalog.Components = append(catalog.Components, comp)

		for j := range s.TestsPer {
			test := schema.TestCase{
				ID:       fmt.Sprintf("test_%04d_%d", i, j),
				Covers:   []string{comp.ID},
				Duration: time.Duration(10+(i*7+j*13)%290) * time.Second,
			}
			if j > 0 {
				test.DependsOn = []string{fmt.Sprintf("test_%04d_0", i)}
			}
			catalog.Tests = append(catalog.Tests, test)
		}
	}
	return catalog
}

// buildDiff modifies one file in each of the first touched components.
func buildDiff(s Scenario) string {
	var b strings.Builder
	step := max(1, s.Components/max(1, s.Touched))
	for n := range s.Touched {
		path := fmt.Sprintf("src/comp_%04d/impl.go", (n*step)%s.Components)
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)
		fmt.Fprintf(&b, "index 1111111..2222222 100644\n--- a/%s\n+++ b/%s\n", path, path)
		b.WriteString("@@ -1,2 +1,3 @@\n package impl\n+func Changed() {}\n // end\n")
	}
	return b.String()
}

// writeScenario writes the catalog and the diff of a scenario to the work dir.
func writeScenario(config BenchmarkConfig, s Scenario) (catalogPath, diffPath string, err error) {
	data, err := yaml.Marshal(buildCatalog(s))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode catalog: %w", err)
	}
	catalogPath = filepath.Join(config.WorkDir, s.Name+".retest.yaml")
	if err := os.WriteFile(catalogPath, data, 0o644); err != nil {
		return "", "", err
	}
	diffPath = filepath.Join(config.WorkDir, s.Name+".patch")
	if err := os.WriteFile(diffPath, []byte(buildDiff(s)), 0o644); err != nil {
		return "", "", err
	}
	return catalogPath, diffPath, nil
}

// runBenchmarks executes the plan benchmark for every scenario.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d scenarios, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Scenarios), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, s := range config.Scenarios {
		catalogPath, diffPath, err := writeScenario(config, s)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", s.Name, err)
			continue
		}
		results = append(results, runBenchmarkSuite(config, s, catalogPath, diffPath))
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a scenario.
func runBenchmarkSuite(config BenchmarkConfig, s Scenario, catalogPath, diffPath string) BenchmarkResult {
	fmt.Printf("Running plan on %s (%d components)\n", s.Name, s.Components)

	// Fresh cache file per scenario
	cacheDB := filepath.Join(config.WorkDir, s.Name+".cache.db")
	_ = os.Remove(cacheDB)

	runPhase := func(cacheBackend, connStr string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, catalogPath, diffPath, cacheBackend, connStr, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	_, noCacheAvg := runPhase("none", "", config.NoCacheRuns, "No-cache")
	coldTime, warmAvg := runPhase("sqlite", cacheDB, config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Scenario:    s.Name,
		Components:  s.Components,
		Tests:       s.Components * s.TestsPer,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes 'retest plan' multiple times and returns cold time and warm times.
func runBenchmark(config BenchmarkConfig, catalogPath, diffPath, cacheBackend, connStr string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{
		"plan",
		"--catalog", catalogPath,
		"--diff", diffPath,
		"--workers", fmt.Sprint(config.Workers),
		"--cache-backend", cacheBackend,
		"--history-backend", "none",
		"--color", "no",
	}
	if connStr != "" {
		args = append(args, "--cache-db-connect", connStr)
	}

	var times []float64
	for range numRuns {
		start := time.Now()

		cmd := exec.Command("retest", args...)
		cmd.Dir = config.WorkDir

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "Plan completed in") &&
		strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/retest_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"scenario", "components", "tests", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		record := []string{
			result.Scenario,
			fmt.Sprint(result.Components),
			fmt.Sprint(result.Tests),
			result.NoCacheTime,
			result.ColdTime,
			result.WarmTime,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	fmt.Printf("Plan:\n")
	for _, result := range results {
		fmt.Printf("  %-8s (%5d tests): No-cache: %s, Cold: %s, Warm: %s\n",
			result.Scenario, result.Tests, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
