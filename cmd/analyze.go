package cmd

import (
	"github.com/huangsam/codepulse/core"
	"github.com/spf13/cobra"
)

// analyzeCmd scores every source file under a path and prints the hotspot report.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path]",
	Short: "Rank files by complexity and change activity",
	Long: `Parse every supported file under the target path, collect churn and ownership
from Git history, and rank files by their hotspot score.

The report lists the top files followed by a directory tree with aggregated metrics.
Files outside a Git work tree, or runs with --no-history, get complexity only.

Examples:
  # Analyze the current repository
  codepulse analyze

  # Analyze one package over the last six months
  codepulse analyze --filter internal/ --window "6 months"

  # Export the full tree as JSON
  codepulse analyze --output json --output-file report.json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteAnalyze(rootCtx, cfg, cacheManager)
	},
}
