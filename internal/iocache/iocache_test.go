package iocache

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/codepulse/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codeparquet "github.com/huangsam/codepulse/internal/parquet"
)

func tempDB(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestCacheStoreSQLite(t *testing.T) {
	store, err := NewCacheStore(historyTable, schema.SQLiteBackend, tempDB(t, "cache.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, _, _, err = store.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.Set("k1", []byte("one"), 1, 100))
	require.NoError(t, store.Set("k1", []byte("uno"), 2, 200))
	require.NoError(t, store.Set("k2", []byte("two"), 1, 50))

	value, version, ts, err := store.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), value)
	assert.Equal(t, 2, version)
	assert.Equal(t, int64(200), ts)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalEntries)
	assert.Equal(t, time.Unix(200, 0), status.LastEntryTime)
	assert.Equal(t, time.Unix(50, 0), status.OldestEntryTime)
	assert.Positive(t, status.TableSizeBytes)

	require.NoError(t, store.Clear())
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalEntries)
}

func TestCacheStoreNoneBackend(t *testing.T) {
	store, err := NewCacheStore(historyTable, schema.NoneBackend, "")
	require.NoError(t, err)

	require.NoError(t, store.Set("k", []byte("v"), 1, 1))
	_, _, _, err = store.Get("k")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, store.Clear())

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestCacheStoreInvalidTableName(t *testing.T) {
	_, err := NewCacheStore("drop table;", schema.SQLiteBackend, tempDB(t, "cache.db"))
	assert.Error(t, err)
	_, err = NewCacheStore("", schema.SQLiteBackend, tempDB(t, "cache.db"))
	assert.Error(t, err)
}

func TestQuoteAndPlaceholder(t *testing.T) {
	assert.Equal(t, "`runs`", quoteTableName("runs", schema.MySQLBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.PostgreSQLBackend))
	assert.Equal(t, "$3", placeholder(schema.PostgreSQLBackend, 3))
	assert.Equal(t, "?", placeholder(schema.SQLiteBackend, 3))

	_, err := driverFor("oracle")
	assert.Error(t, err)
}

func recordRun(t *testing.T, store *RunStoreImpl, start time.Time) int64 {
	t.Helper()
	runID, err := store.BeginRun("demo", "abc123", start, map[string]any{"workers": 2})
	require.NoError(t, err)

	tier := string(schema.TierHigh)
	require.NoError(t, store.RecordNodeMetrics(runID, []schema.NodeMetricRecord{
		{NodeKind: "file", NodePath: "a.go", Metric: schema.MetricHotspot, Unit: "score", Value: 240, Tier: &tier},
		{NodeKind: "file", NodePath: "a.go", Metric: schema.MetricChurn, Unit: "commits", Value: 12},
		{NodeKind: "dir", NodePath: "", Metric: schema.MetricChurn, Unit: "commits", Value: 12},
	}))
	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), 1))
	return runID
}

func TestRunStoreSQLite(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, tempDB(t, "runs.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	start := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	runID := recordRun(t, store, start)
	assert.Equal(t, int64(1), runID)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.TotalRuns)
	assert.Equal(t, int64(1), status.LastRunID)
	assert.True(t, start.Equal(status.LastRunTime))
	assert.True(t, start.Equal(status.OldestRunTime))
	assert.Equal(t, 2, status.TotalNodes)
	assert.Equal(t, int64(1), status.TableSizes[runsTable])
	assert.Equal(t, int64(3), status.TableSizes[nodeMetricsTable])

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "demo", runs[0].RepoName)
	assert.Equal(t, "abc123", runs[0].HeadCommit)
	assert.Equal(t, int32(1), runs[0].TotalFiles)
	require.NotNil(t, runs[0].EndTime)
	require.NotNil(t, runs[0].RunDurationMs)
	assert.Equal(t, int32(1500), *runs[0].RunDurationMs)
	require.NotNil(t, runs[0].ConfigParams)
	assert.JSONEq(t, `{"workers":2}`, *runs[0].ConfigParams)

	metrics, err := store.GetAllNodeMetrics()
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "", metrics[0].NodePath)
	assert.Equal(t, "a.go", metrics[1].NodePath)
	assert.Equal(t, schema.MetricChurn, metrics[1].Metric)
	assert.Nil(t, metrics[1].Tier)
	require.NotNil(t, metrics[2].Tier)
	assert.Equal(t, "high", *metrics[2].Tier)

	require.NoError(t, store.Clear())
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.TotalRuns)
}

func TestRunStoreDuplicateMetricRollsBack(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, tempDB(t, "runs.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	runID, err := store.BeginRun("demo", "abc", time.Now(), nil)
	require.NoError(t, err)

	row := schema.NodeMetricRecord{NodeKind: "file", NodePath: "a.go", Metric: schema.MetricChurn, Unit: "commits", Value: 1}
	err = store.RecordNodeMetrics(runID, []schema.NodeMetricRecord{row, row})
	assert.Error(t, err)

	metrics, err := store.GetAllNodeMetrics()
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestRunStoreNoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun("demo", "abc", time.Now(), nil)
	require.NoError(t, err)
	assert.Zero(t, runID)
	require.NoError(t, store.RecordNodeMetrics(runID, []schema.NodeMetricRecord{{NodePath: "a.go"}}))
	require.NoError(t, store.EndRun(runID, time.Now(), 1))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.False(t, status.Connected)
	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	assert.Nil(t, runs)
}

func TestMigrateRuns(t *testing.T) {
	path := tempDB(t, "runs.db")

	version, err := MigrateRuns(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	version, err = MigrateRuns(schema.SQLiteBackend, path, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	version, err = MigrateRuns(schema.SQLiteBackend, path, 0)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	// Opening the store brings the schema back to the latest version.
	store, err := NewRunStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	recordRun(t, store, time.Now().UTC())
	require.NoError(t, store.Close())

	version, err = MigrateRuns(schema.SQLiteBackend, path, -1)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)

	_, err = MigrateRuns(schema.NoneBackend, "", -1)
	assert.Error(t, err)
}

func TestCacheStoreManagerUnset(t *testing.T) {
	mgr := &CacheStoreManager{}
	assert.Nil(t, mgr.GetHistoryStore())
	assert.Nil(t, mgr.GetRunStore())
}

func TestOpenStores(t *testing.T) {
	dir := t.TempDir()
	history, runs, err := openStores(schema.SQLiteBackend, filepath.Join(dir, "cache.db"), schema.SQLiteBackend, filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	require.NotNil(t, history)
	require.NotNil(t, runs)
	_ = history.Close()
	_ = runs.Close()

	history, runs, err = openStores(schema.NoneBackend, "", "", "")
	require.NoError(t, err)
	assert.Nil(t, history)
	assert.Nil(t, runs)

	_, _, err = openStores(schema.SQLiteBackend, filepath.Join(dir, "cache.db"), "oracle", "")
	assert.Error(t, err)
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheStatus(&buf, schema.CacheStatus{Backend: "none"})
	assert.Contains(t, buf.String(), "Connected: false")
	assert.NotContains(t, buf.String(), "Total Entries")

	buf.Reset()
	PrintCacheStatus(&buf, schema.CacheStatus{
		Backend: "sqlite", Connected: true, TotalEntries: 1200,
		LastEntryTime: time.Now(), OldestEntryTime: time.Now(), TableSizeBytes: 4096,
	})
	assert.Contains(t, buf.String(), "Total Entries: 1,200")
	assert.Contains(t, buf.String(), "Table Size: 4.1 kB")

	buf.Reset()
	PrintRunStatus(&buf, schema.RunStatus{
		Backend: "sqlite", Connected: true, TotalRuns: 2, LastRunID: 2,
		LastRunTime: time.Now(), OldestRunTime: time.Now(), TotalNodes: 10,
		TableSizes: map[string]int64{runsTable: 2, nodeMetricsTable: 30},
	})
	out := buf.String()
	assert.Contains(t, out, "Total Runs: 2")
	assert.Contains(t, out, "Last Run ID: 2")
	assert.Contains(t, out, "codepulse_node_metrics: 30 rows")
}

func TestExecuteRunExport(t *testing.T) {
	store, err := NewRunStore(schema.SQLiteBackend, tempDB(t, "runs.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	recordRun(t, store, time.Now().UTC())

	prefix := filepath.Join(t.TempDir(), "export")
	var buf bytes.Buffer
	require.NoError(t, ExecuteRunExport(&buf, store, prefix))
	assert.Contains(t, buf.String(), "Exported 1 runs")

	runs, err := parquet.ReadFile[codeparquet.Run](prefix + runsExportSuffix)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "demo", runs[0].RepoName)

	metrics, err := parquet.ReadFile[codeparquet.NodeMetric](prefix + metricsExportSuffix)
	require.NoError(t, err)
	assert.Len(t, metrics, 3)
}

func TestExecuteRunExportErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, ExecuteRunExport(&buf, nil, "out"))
	assert.Error(t, ExecuteRunExport(&buf, &MockRunStore{}, ""))

	empty := &MockRunStore{}
	empty.On("GetStatus").Return(schema.RunStatus{Connected: true}, nil)
	assert.Error(t, ExecuteRunExport(&buf, empty, filepath.Join(t.TempDir(), "out")))
	empty.AssertExpectations(t)

	failing := &MockRunStore{}
	failing.On("GetStatus").Return(schema.RunStatus{TotalRuns: 1}, nil)
	failing.On("GetAllRuns").Return(nil, assert.AnError)
	err := ExecuteRunExport(&buf, failing, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, assert.AnError)
	failing.AssertNotCalled(t, "GetAllNodeMetrics")
}

func TestMain(m *testing.M) {
	// Keep default SQLite files out of the real home directory.
	home, err := os.MkdirTemp("", "codepulse-home")
	if err != nil {
		panic(err)
	}
	_ = os.Setenv("HOME", home)
	code := m.Run()
	_ = os.RemoveAll(home)
	os.Exit(code)
}
