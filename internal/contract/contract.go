// Package contract provides interfaces and shared utilities for codepulse's internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/codepulse/schema"
)

// GitClient defines the Git operations needed for history analysis.
// This allows the core analysis logic to be tested without needing a real git executable.
type GitClient interface {
	// --- Generic / Low-Level ---

	// Run executes a git command and returns its standard output.
	// Its use should be minimized in favor of the explicit methods below.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// --- Reference Resolution ---

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// --- File State ---

	// ListFiles returns tracked plus untracked-but-not-ignored files, relative to the root.
	ListFiles(ctx context.Context, repoPath string) ([]string, error)

	// ListTrackedFiles returns the files in the index, relative to the root.
	ListTrackedFiles(ctx context.Context, repoPath string) ([]string, error)

	// --- Activity / Authorship ---

	// HasCommitsSince reports whether any commit exists at or after since.
	HasCommitsSince(ctx context.Context, repoPath string, since time.Time) (bool, error)

	// GetActivityLog returns the repository-wide commit log with numstat lines.
	GetActivityLog(ctx context.Context, repoPath string, since time.Time) ([]byte, error)

	// GetFileLog returns the commit log with numstat lines for a single path.
	GetFileLog(ctx context.Context, repoPath string, path string, since time.Time) ([]byte, error)

	// GetBlame returns the line-porcelain blame of a path at HEAD.
	GetBlame(ctx context.Context, repoPath string, path string) ([]byte, error)
}

// CacheManager defines the interface for managing the persistent stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetHistoryStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for history cache storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Clear() error
	Close() error
}

// RunStore defines the interface for recording analysis runs and their node metrics.
type RunStore interface {
	// BeginRun creates a new run and returns its unique ID
	BeginRun(repoName, head string, startTime time.Time, configParams map[string]any) (int64, error)

	// RecordNodeMetrics stores metric rows for a run in one transaction
	RecordNodeMetrics(runID int64, records []schema.NodeMetricRecord) error

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, totalFiles int) error

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// GetAllRuns retrieves all runs ordered by ID
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllNodeMetrics retrieves all node metric rows ordered by run and path
	GetAllNodeMetrics() ([]schema.NodeMetricRecord, error)

	// Close closes the underlying connection
	Close() error
}
