package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/internal/parquet"
)

// Export file suffixes appended to the output prefix.
const (
	runsExportSuffix    = ".runs.parquet"
	metricsExportSuffix = ".node_metrics.parquet"
)

// ExecuteRunExport writes every recorded run and node metric to two Parquet
// files named after outputFile.
func ExecuteRunExport(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is not enabled")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	metrics, err := store.GetAllNodeMetrics()
	if err != nil {
		return fmt.Errorf("failed to retrieve node metrics: %w", err)
	}

	runsFile := outputFile + runsExportSuffix
	if err := parquet.WriteFile(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	metricsFile := outputFile + metricsExportSuffix
	if err := parquet.WriteFile(parquet.ConvertNodeMetricRecords(metrics), metricsFile); err != nil {
		return fmt.Errorf("failed to write node metrics: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d node metric rows to: %s\n", len(metrics), metricsFile)
	return nil
}
