// Package core runs the analysis pipeline: discovery, parsing, history,
// scoring and the directory roll-up.
package core

import (
	"context"
	"time"

	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/internal/outwriter"
)

// ExecutorFunc defines the function signature for executing a command.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteAnalyze analyzes the configured repository and prints the report.
// It serves as the main entry point for the 'analyze' command.
func ExecuteAnalyze(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	client := contract.NewLocalGitClient()
	repo, err := Analyze(ctx, cfg, client, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintAnalysis(repo, cfg, time.Since(start))
}
