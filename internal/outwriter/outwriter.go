// Package outwriter renders analysis results as tables, JSON, CSV or Parquet.
package outwriter

import (
	"fmt"
	"io"
	"time"

	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/internal/parquet"
	"github.com/huangsam/codepulse/schema"
)

// PrintAnalysis outputs the analyzed tree, dispatching on the configured output format.
func PrintAnalysis(repo *schema.RepoInfo, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := createFormatter(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, repo)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeNodesCSV(w, repo, fmtFloat)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return fmt.Errorf("--output-file is required for parquet output")
		}
		ranked := algo.RankFiles(schema.AllFiles(repo.Tree), cfg.ResultLimit)
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.Write(w, parquet.ConvertRankedFiles(ranked))
		}, "Wrote Parquet"); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		// Default to human-readable tables
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeReport(w, repo, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
	return nil
}
