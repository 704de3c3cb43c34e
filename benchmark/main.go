// Package main measures codepulse analysis times against a set of local checkouts.
// Every suite runs without a history cache, then with a SQLite cache where the
// first run is cold and the remaining runs are averaged as warm.
//
// Prerequisites:
// - codepulse binary installed and available in PATH
// - Test repositories cloned under the base directory: fd, flask, kubernetes
//
// Usage: go run benchmark/main.go [repo-base-dir]
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// BenchmarkResult holds the timings of one suite on one repository.
type BenchmarkResult struct {
	Repository  string
	Suite       string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase    string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
	TestRepos   []string
	RepoFilters map[string]string
}

// suite is one analyze invocation under test.
type suite struct {
	name string
	args []string
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		RepoBase:    os.Args[1],
		Timeout:     10 * time.Minute,
		NoCacheRuns: 3,
		CacheRuns:   4,
		TestRepos:   []string{"fd", "flask", "kubernetes"},
		RepoFilters: map[string]string{
			"fd":         "src",
			"flask":      "src/flask",
			"kubernetes": "pkg/kubelet",
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	if output, err := exec.Command("codepulse", "cache", "clear").CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	}

	results := runBenchmarks(config)
	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// checkPrerequisites verifies that the binary and test repositories exist.
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("codepulse"); err != nil {
		return fmt.Errorf("codepulse binary not found in PATH")
	}
	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}
	return nil
}

// suitesFor lists the analyze invocations for one repository.
func suitesFor(config BenchmarkConfig, repo string) []suite {
	suites := []suite{
		{name: "full", args: nil},
		{name: "complexity", args: []string{"--no-history"}},
	}
	if filter, ok := config.RepoFilters[repo]; ok {
		suites = append(suites, suite{name: "filtered", args: []string{"--filter", filter}})
	}
	return suites
}

// runBenchmarks executes every suite across the configured repositories.
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult
	fmt.Printf("Starting benchmark: %d repos, %v timeout, no-cache: %d runs, cache: %d runs\n",
		len(config.TestRepos), config.Timeout, config.NoCacheRuns, config.CacheRuns)

	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		for _, s := range suitesFor(config, repo) {
			results = append(results, runSuite(config, repo, repoPath, s))
		}
	}
	return results
}

// runSuite runs the no-cache and cache phases of a suite.
func runSuite(config BenchmarkConfig, repo, repoPath string, s suite) BenchmarkResult {
	fmt.Printf("Running %s analysis on %s\n", s.name, repo)

	_, noCache := runPhase(config, repoPath, s.args, "none", config.NoCacheRuns)
	cold, warm := runPhase(config, repoPath, s.args, "sqlite", config.CacheRuns)

	coldStr := "TIMEOUT"
	if len(cold) > 0 {
		coldStr = cold
	}
	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCache, coldStr, warm)

	return BenchmarkResult{
		Repository:  repo,
		Suite:       s.name,
		NoCacheTime: noCache,
		ColdTime:    coldStr,
		WarmTime:    warm,
	}
}

// runPhase runs analyze numRuns times and returns the first run and the average of the rest.
// For the none backend every run is averaged.
func runPhase(config BenchmarkConfig, repoPath string, extra []string, cacheBackend string, numRuns int) (first, avg string) {
	args := append([]string{"analyze", "--cache-backend", cacheBackend, "--output-file", os.DevNull}, extra...)

	var times []float64
	for range numRuns {
		if secs, ok := timedRun(config.Timeout, repoPath, args); ok {
			times = append(times, secs)
		}
	}
	if len(times) == 0 {
		return "", "TIMEOUT"
	}
	if cacheBackend != "none" {
		first = fmt.Sprintf("%.3fs", times[0])
		times = times[1:]
	}
	if len(times) == 0 {
		return first, "N/A"
	}
	var sum float64
	for _, t := range times {
		sum += t
	}
	return first, fmt.Sprintf("%.3fs", sum/float64(len(times)))
}

// timedRun runs one analysis and reports its wall time when it succeeded in time.
func timedRun(timeout time.Duration, repoPath string, args []string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "codepulse", args...)
	cmd.Dir = repoPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == nil {
			fmt.Printf("  run failed: %v\n%s\n", err, strings.TrimSpace(string(output)))
		}
		return 0, false
	}
	return time.Since(start).Seconds(), true
}

// saveResults writes benchmark results to a timestamped CSV file.
func saveResults(results []BenchmarkResult) error {
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("codepulse_benchmark_%s.csv", time.Now().Format("20060102_150405")))

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
	if err := writer.Write([]string{"repo", "suite", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.Repository, r.Suite, r.NoCacheTime, r.ColdTime, r.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results grouped by suite.
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, name := range []string{"full", "complexity", "filtered"} {
		fmt.Printf("%s analysis:\n", name)
		for _, r := range results {
			if r.Suite == name {
				fmt.Printf("  %-12s: No-cache: %s, Cold: %s, Warm: %s\n", r.Repository, r.NoCacheTime, r.ColdTime, r.WarmTime)
			}
		}
	}
}
