package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/codepulse/internal/iocache"
	"github.com/huangsam/codepulse/schema"
	"github.com/spf13/cobra"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	backend, connStr, err := storeSettings("cache-backend", "cache-db-connect", schema.SQLiteBackend)
	if err != nil {
		return err
	}

	// Initialize caching with the loaded config (no run tracking for cache commands)
	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on history cache management.
//
// Note: Cache subcommands skip sharedSetup. They never need a repository path.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Git history cache",
	Long: `Manage the cache of per-file churn and ownership results.

Codepulse caches history results keyed by repository head and history window,
so repeated analyses of an unchanged repository skip most Git calls.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None

Examples:
  # Check cache status
  codepulse cache status

  # Clear cache after rewriting history
  codepulse cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached history data",
	Long: `Delete all cached history entries from the configured backend.
The table itself is kept.

Examples:
  # Clear SQLite cache (default)
  codepulse cache clear

  # Clear MySQL cache (set connection string via env variable)
  CODEPULSE_CACHE_BACKEND=mysql CODEPULSE_CACHE_DB_CONNECT="..." codepulse cache clear`,
	PreRunE: cacheSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := iocache.ClearHistory(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		cmd.Println("Cache cleared successfully.")
		return nil
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show the backend, entry count, entry age range and table size of the history cache.

Examples:
  # Check cache status
  codepulse cache status`,
	PreRunE: cacheSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := iocache.Manager.GetHistoryStore()
		if store == nil {
			iocache.PrintCacheStatus(os.Stdout, schema.CacheStatus{Backend: string(cfg.CacheBackend)})
			return nil
		}
		status, err := store.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get cache status: %w", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
		return nil
	},
}
