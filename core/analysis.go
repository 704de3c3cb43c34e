package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/codepulse/core/agg"
	"github.com/huangsam/codepulse/core/algo"
	"github.com/huangsam/codepulse/core/history"
	"github.com/huangsam/codepulse/core/parse"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/schema"
)

// ErrNoFiles is returned when discovery leaves nothing to analyze.
var ErrNoFiles = errors.New("no files found")

// Analyze runs the whole pipeline over cfg.RepoPath: discovery, history
// prewarm, the per-file worker pool and the directory roll-up.
// Degraded files and aggregation problems are logged and kept in the result;
// the returned error is only set for cancellation, discovery failure or a
// corrupt history cache.
func Analyze(ctx context.Context, cfg *contract.Config, client contract.GitClient, mgr contract.CacheManager) (*schema.RepoInfo, error) {
	if !shouldSuppressHeader(ctx) {
		logAnalysisHeader(cfg)
	}

	// --- 0. Begin Run Tracking (if configured) ---
	start := time.Now()
	var runStore contract.RunStore
	if mgr != nil {
		runStore = mgr.GetRunStore()
	}

	// --- 1. Discovery ---
	files, err := discoverFiles(ctx, cfg, client)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	repo := schema.NewRepoInfo(filepath.Base(cfg.RepoPath), cfg.RepoPath)
	an := &analyzer{
		cfg:      cfg,
		registry: parse.NewRegistry(cfg.StructuralWeights),
		scorer:   algo.NewHotspotScorer(cfg.Thresholds),
	}

	// --- 2. History Prewarm ---
	if !cfg.NoHistory && cfg.GitRepo {
		opts := history.Options{Timeout: cfg.HistoryTimeout}
		if mgr != nil {
			opts.Store = mgr.GetHistoryStore()
		}
		cache := history.NewCache(ctx, client, cfg.RepoPath, opts)
		repo.Head = cache.Head()
		an.churn = history.NewChurnCalculator(cache, start)
		an.ownership = history.NewOwnershipCalculator(cache, cfg.SignificanceFloor)

		if err := cache.Prewarm(ctx, files, an.churn.WindowStart(cfg.WindowDays), cfg.Workers); err != nil {
			return nil, err
		}
		defer func() {
			stats := cache.Stats()
			contract.LogDebug(fmt.Sprintf("history cache: %d hits, %d misses, %d store hits, %d git calls",
				stats.Hits, stats.Misses, stats.StoreHits, stats.VCSCalls), nil)
		}()
	}

	if runStore != nil {
		configParams := map[string]any{
			"repo_path":          cfg.RepoPath,
			"path_filter":        cfg.PathFilter,
			"window":             cfg.Window.String(),
			"workers":            cfg.Workers,
			"significance_floor": cfg.SignificanceFloor,
			"no_history":         cfg.NoHistory,
		}
		runID, err := runStore.BeginRun(repo.Name, repo.Head, start, configParams)
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
		} else if runID > 0 {
			ctx = withRunID(ctx, runID)
		}
	}

	// --- 3. Core Analysis ---
	builder := agg.NewHierarchyBuilder()
	if err := analyzeRepo(ctx, an, builder, repo, files, cfg.Workers); err != nil {
		if runID, ok := getRunID(ctx); ok {
			abortRun(runStore, runID)
		}
		return nil, err
	}

	// --- 4. Roll-up ---
	for _, w := range agg.NewAggregator(cfg.Aggregations).Aggregate(repo.Tree) {
		contract.LogWarn("Aggregation skipped a metric", w.AggregationError)
		repo.Warnings = append(repo.Warnings, w.Error())
	}
	repo.KPIs = repo.Tree.KPIs.Clone()

	// --- 5. End Run Tracking ---
	if runID, ok := getRunID(ctx); ok {
		recordRun(runStore, runID, repo, len(files))
	}
	return repo, nil
}

// analyzeRepo processes all files in parallel using a worker pool.
// It spawns workers goroutines that analyze files and attach them to the tree.
func analyzeRepo(ctx context.Context, an *analyzer, builder *agg.HierarchyBuilder, repo *schema.RepoInfo, files []string, workers int) error {
	fileCh := make(chan string, len(files))
	errCh := make(chan error, len(files))
	var wg sync.WaitGroup

	// Start worker pool
	for range max(1, workers) {
		wg.Go(func() {
			for f := range fileCh {
				if ctx.Err() != nil {
					errCh <- ctx.Err()
					continue
				}
				file, err := newFileAnalysisBuilder(ctx, an, f).
					Parse().   // Structural KPIs and functions
					History(). // Churn and ownership
					Score().   // Hotspot from the two above
					Build()
				if err != nil {
					errCh <- err
					continue
				}
				if _, added := builder.AddFile(repo, fileDir(f), file); !added {
					contract.LogDebug("duplicate path ignored: "+f, nil)
				}
			}
		})
	}

	// Send files to worker channel
	for _, f := range files {
		fileCh <- f
	}
	close(fileCh)

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errs[0]
}

// discoverFiles lists the files to analyze as sorted slash-separated paths
// relative to the repository root. Git repositories use the index plus
// untracked files that are not ignored; plain directories are walked.
func discoverFiles(ctx context.Context, cfg *contract.Config, client contract.GitClient) ([]string, error) {
	var candidates []string
	if cfg.GitRepo {
		listed, err := client.ListFiles(ctx, cfg.RepoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		candidates = listed
	} else {
		walked, err := walkFiles(ctx, cfg.RepoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", cfg.RepoPath, err)
		}
		candidates = walked
	}

	files := make([]string, 0, len(candidates))
	for _, f := range candidates {
		f = filepath.ToSlash(f)
		if cfg.PathFilter != "" && !strings.HasPrefix(f, cfg.PathFilter) {
			continue
		}
		if contract.ShouldIgnore(f, cfg.Excludes) {
			continue
		}
		files = append(files, f)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// walkFiles returns the regular files under root, skipping VCS metadata.
func walkFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".hg" || d.Name() == ".svn" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

// fileDir returns the directory of a relative file path, "" for the root.
func fileDir(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		return ""
	}
	return dir
}

// logAnalysisHeader prints a concise, 2-line header on stderr.
func logAnalysisHeader(cfg *contract.Config) {
	repoName := filepath.Base(cfg.RepoPath)
	if repoName == "" || repoName == "." {
		repoName = "current"
	}
	fmt.Fprintf(os.Stderr, "🔎 Repo: %s (Workers: %d)\n", repoName, cfg.Workers)
	if cfg.NoHistory {
		fmt.Fprintln(os.Stderr, "📅 History: disabled")
		return
	}
	fmt.Fprintf(os.Stderr, "📅 Window: %d days since %s\n", cfg.WindowDays, cfg.Since.Format(contract.DateTimeFormat))
}
