// Package parquet provides data structures and functions for exporting codepulse
// data to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single analysis run with metadata.
// This struct maps to the codepulse_runs database table.
type Run struct {
	RunID         int64      `parquet:"run_id,snappy"`
	RepoName      string     `parquet:"repo_name,snappy,dict"`
	HeadCommit    string     `parquet:"head_commit,snappy"`
	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`
	TotalFiles    int32      `parquet:"total_files,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// NodeMetric is one metric value of one node in a run.
// This struct maps to the codepulse_node_metrics database table.
type NodeMetric struct {
	RunID    int64   `parquet:"run_id,snappy"`
	NodeKind string  `parquet:"node_kind,snappy,dict"`
	NodePath string  `parquet:"node_path,snappy"`
	Metric   string  `parquet:"metric,snappy,dict"`
	Unit     string  `parquet:"unit,snappy,dict"`
	Value    float64 `parquet:"value,snappy"`
	Tier     *string `parquet:"tier,optional,snappy,dict"`
}

// RankedFile is one row of a ranked analysis report. Metrics that were not
// computed for the file are left null.
type RankedFile struct {
	Rank         int32    `parquet:"rank,snappy"`
	Path         string   `parquet:"path,snappy"`
	Language     *string  `parquet:"language,optional,snappy,dict"`
	Cyclomatic   *float64 `parquet:"cyclomatic,optional,snappy"`
	Cognitive    *float64 `parquet:"cognitive,optional,snappy"`
	Churn        *float64 `parquet:"churn,optional,snappy"`
	LinesChanged *float64 `parquet:"lines_changed,optional,snappy"`
	Ownership    *float64 `parquet:"ownership,optional,snappy"`
	Hotspot      *float64 `parquet:"hotspot,optional,snappy"`
	Tier         *string  `parquet:"tier,optional,snappy,dict"`
	Degraded     bool     `parquet:"degraded,snappy"`
}

// Write encodes rows as a Parquet file to w. The schema is derived from the
// struct tags of T.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile writes rows to a new Parquet file at outputPath.
func WriteFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ConvertRunRecords converts stored runs to Parquet rows.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:         record.RunID,
			RepoName:      record.RepoName,
			HeadCommit:    record.HeadCommit,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			TotalFiles:    record.TotalFiles,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// ConvertNodeMetricRecords converts stored node metrics to Parquet rows.
func ConvertNodeMetricRecords(records []schema.NodeMetricRecord) []NodeMetric {
	result := make([]NodeMetric, len(records))
	for i, record := range records {
		result[i] = NodeMetric{
			RunID:    record.RunID,
			NodeKind: record.NodeKind,
			NodePath: record.NodePath,
			Metric:   record.Metric,
			Unit:     record.Unit,
			Value:    record.Value,
			Tier:     record.Tier,
		}
	}
	return result
}

// ConvertRankedFiles converts a ranking into report rows numbered from 1.
func ConvertRankedFiles(ranked []algo.RankedFile) []RankedFile {
	result := make([]RankedFile, len(ranked))
	for i, r := range ranked {
		kpis := r.File.Snapshot()
		row := RankedFile{
			Rank:         int32(i + 1),
			Path:         r.File.Path,
			Cyclomatic:   kpis.Value(schema.MetricCyclomatic),
			Cognitive:    kpis.Value(schema.MetricCognitive),
			Churn:        kpis.Value(schema.MetricChurn),
			LinesChanged: kpis.Value(schema.MetricLinesChanged),
			Ownership:    kpis.Value(schema.MetricOwnership),
			Degraded:     r.File.Degraded,
		}
		if r.File.Language != "" {
			lang := string(r.File.Language)
			row.Language = &lang
		}
		if r.Present {
			score, tier := r.Score, string(r.Tier)
			row.Hotspot, row.Tier = &score, &tier
		}
		result[i] = row
	}
	return result
}
