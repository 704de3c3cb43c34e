package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
)

// Table names for run tracking. Both are owned by the migrations.
const (
	runsTable        = "codepulse_runs"
	nodeMetricsTable = "codepulse_node_metrics"
)

// RunStoreImpl records analysis runs and their node metrics in SQL tables.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore opens the run store and migrates it to the latest schema.
// The none backend returns a store that records nothing.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetRunDBFilePath())
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db, backend); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

// table returns the quoted name of a run store table.
func (rs *RunStoreImpl) table(name string) string {
	return quoteTableName(name, rs.backend)
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(repoName, head string, startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (repo_name, head_commit, start_time, config_params) VALUES ($1, $2, $3, $4) RETURNING run_id`, rs.table(runsTable))
		err = rs.db.QueryRow(query, repoName, head, startTime, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (repo_name, head_commit, start_time, config_params) VALUES (?, ?, ?, ?)`, rs.table(runsTable))
		var result sql.Result
		result, err = rs.db.Exec(query, repoName, head, formatTime(startTime, rs.backend), string(configJSON))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordNodeMetrics stores every row for a run in a single transaction.
func (rs *RunStoreImpl) RecordNodeMetrics(runID int64, records []schema.NodeMetricRecord) error {
	if rs.db == nil || len(records) == 0 {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := func(n int) string { return placeholder(rs.backend, n) }
	query := fmt.Sprintf(`INSERT INTO %s (run_id, node_kind, node_path, metric, unit, value, tier) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		rs.table(nodeMetricsTable), p(1), p(2), p(3), p(4), p(5), p(6), p(7))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare node metric insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.NodeKind, r.NodePath, r.Metric, r.Unit, r.Value, r.Tier); err != nil {
			return fmt.Errorf("failed to insert metric %s for %s: %w", r.Metric, r.NodePath, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit node metrics: %w", err)
	}
	return nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, totalFiles int) error {
	if rs.db == nil {
		return nil
	}

	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, rs.table(runsTable), placeholder(rs.backend, 1))
	startTime, err := rs.scanTime(rs.db.QueryRow(query, runID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	p := func(n int) string { return placeholder(rs.backend, n) }
	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_files = %s WHERE run_id = %s`,
		rs.table(runsTable), p(1), p(2), p(3), p(4))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, totalFiles, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	row := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(runsTable)))
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row = rs.db.QueryRow(fmt.Sprintf("SELECT run_id FROM %s ORDER BY run_id DESC LIMIT 1", rs.table(runsTable)))
		if err := row.Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run id: %w", err)
		}
		var err error
		lastQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id DESC LIMIT 1", rs.table(runsTable))
		if status.LastRunTime, err = rs.scanTime(rs.db.QueryRow(lastQuery)); err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}
		oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", rs.table(runsTable))
		if status.OldestRunTime, err = rs.scanTime(rs.db.QueryRow(oldestQuery)); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}

		nodesQuery := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT DISTINCT run_id, node_kind, node_path FROM %s) nodes", rs.table(nodeMetricsTable))
		if err := rs.db.QueryRow(nodesQuery).Scan(&status.TotalNodes); err != nil {
			return status, fmt.Errorf("failed to get total nodes: %w", err)
		}
	}

	for _, table := range []string{runsTable, nodeMetricsTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all runs from the store.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, repo_name, head_commit, start_time, end_time, run_duration_ms, total_files, config_params
		FROM %s ORDER BY run_id`, rs.table(runsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		if rs.backend == schema.SQLiteBackend {
			var startStr string
			var endStr *string
			if err := rows.Scan(&record.RunID, &record.RepoName, &record.HeadCommit, &startStr, &endStr,
				&record.RunDurationMs, &record.TotalFiles, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			if record.StartTime, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if endStr != nil {
				end, err := time.Parse(time.RFC3339Nano, *endStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				record.EndTime = &end
			}
		} else if err := rows.Scan(&record.RunID, &record.RepoName, &record.HeadCommit, &record.StartTime, &record.EndTime,
			&record.RunDurationMs, &record.TotalFiles, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllNodeMetrics retrieves all node metric rows from the store.
func (rs *RunStoreImpl) GetAllNodeMetrics() ([]schema.NodeMetricRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, node_kind, node_path, metric, unit, value, tier
		FROM %s ORDER BY run_id, node_path, metric`, rs.table(nodeMetricsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query node metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.NodeMetricRecord
	for rows.Next() {
		var r schema.NodeMetricRecord
		if err := rows.Scan(&r.RunID, &r.NodeKind, &r.NodePath, &r.Metric, &r.Unit, &r.Value, &r.Tier); err != nil {
			return nil, fmt.Errorf("failed to scan node metric: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node metrics: %w", err)
	}
	return results, nil
}

// Clear deletes every run and metric row while keeping the schema.
func (rs *RunStoreImpl) Clear() error {
	if rs.db == nil {
		return nil
	}
	for _, table := range []string{nodeMetricsTable, runsTable} {
		if _, err := rs.db.Exec(fmt.Sprintf("DELETE FROM %s", rs.table(table))); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// scanTime reads a single timestamp column. SQLite keeps timestamps as text.
func (rs *RunStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	if rs.backend != schema.SQLiteBackend {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	}
	var s string
	if err := row.Scan(&s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.Format(time.RFC3339Nano)
	}
	return t
}
