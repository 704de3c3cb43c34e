package schema

import "time"

// CacheStatus represents the status of the history cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStatus represents the status of the run store.
type RunStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TotalNodes    int              `json:"total_nodes"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the codepulse_runs table.
type RunRecord struct {
	RunID         int64
	RepoName      string
	HeadCommit    string
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	TotalFiles    int32
	ConfigParams  *string
}

// NodeMetricRecord represents a row from the codepulse_node_metrics table.
type NodeMetricRecord struct {
	RunID    int64
	NodeKind string
	NodePath string
	Metric   string
	Unit     string
	Value    float64
	Tier     *string
}
