//go:build integration

// Package integration contains end-to-end tests for the codepulse binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags integration ./integration
package integration

import (
	"bytes"
	"encoding/csv"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChurnVerification checks reported churn against git log for every scored file.
func TestChurnVerification(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	repoPath, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	require.NoError(t, err)
	repoDir := strings.TrimSpace(string(repoPath))

	cmd := exec.Command(getBinary(), "analyze", "--output", "csv", "--window", "90 days", "--filter", "schema")
	cmd.Dir = repoDir
	cmd.Env = append(os.Environ(), "CODEPULSE_CACHE_BACKEND=none")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	require.NoError(t, cmd.Run())

	fileChurn := parseChurnCSV(t, stdout.String())
	require.NotEmpty(t, fileChurn)

	// The window start is truncated to the hour, so churn sits between the two bounds.
	now := time.Now()
	inner := now.AddDate(0, 0, -90)
	outer := inner.Add(-time.Hour)

	for file, churn := range fileChurn {
		t.Run(file, func(t *testing.T) {
			low := countCommits(t, repoDir, file, inner)
			high := countCommits(t, repoDir, file, outer)
			assert.GreaterOrEqual(t, churn, low, "churn below git log count for %s", file)
			assert.LessOrEqual(t, churn, high, "churn above git log count for %s", file)
		})
	}
}

// TestVersionCommand checks the version banner.
func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "codepulse CLI")
	assert.Contains(t, out, "Runtime:")
}

// parseChurnCSV extracts the churn column of file rows from analyze CSV output.
func parseChurnCSV(t *testing.T, out string) map[string]int {
	t.Helper()
	start := strings.Index(out, "kind,path")
	require.GreaterOrEqual(t, start, 0, "missing CSV header in output:\n%s", out)

	records, err := csv.NewReader(strings.NewReader(out[start:])).ReadAll()
	require.NoError(t, err)

	header := records[0]
	churnCol := -1
	for i, h := range header {
		if h == "churn" {
			churnCol = i
		}
	}
	require.NotEqual(t, -1, churnCol)

	result := map[string]int{}
	for _, row := range records[1:] {
		if row[0] != "file" || row[churnCol] == "" {
			continue
		}
		v, err := strconv.ParseFloat(row[churnCol], 64)
		require.NoError(t, err)
		result[row[1]] = int(v)
	}
	return result
}

// countCommits counts distinct commits touching a file since the given time.
func countCommits(t *testing.T, repoDir, file string, since time.Time) int {
	t.Helper()
	cmd := exec.Command("git", "log", "--format=%H", "--since="+since.Format(time.RFC3339), "--", file)
	cmd.Dir = repoDir
	out, err := cmd.Output()
	require.NoError(t, err)
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "\n"))
}
