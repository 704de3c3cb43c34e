package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/huangsam/codepulse/internal/iocache"
	"github.com/huangsam/codepulse/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsSetup opens only the run store. SQLite is used when no run backend is configured.
func runsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	backend, connStr, err := storeSettings("run-backend", "run-db-connect", schema.SQLiteBackend)
	if err != nil {
		return err
	}
	if err := iocache.InitStores(schema.NoneBackend, "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}
	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsCmd manages the recorded analysis runs.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded analysis runs",
	Long: `Every analysis can be recorded with its per-node metrics when a run backend is set.

Examples:
  # Record runs while analyzing
  codepulse analyze --run-backend sqlite

  # Inspect and export recorded runs
  codepulse runs status
  codepulse runs export --output-file history`,
}

// runsStatusCmd shows run store status.
var runsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display run store statistics",
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get run status: %w", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
		return nil
	},
}

// runsClearCmd deletes all recorded runs.
var runsClearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete all recorded runs and node metrics",
	PreRunE: runsSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := iocache.ClearRuns(); err != nil {
			return fmt.Errorf("failed to clear runs: %w", err)
		}
		cmd.Println("Runs cleared successfully.")
		return nil
	},
}

// runsExportCmd writes recorded runs to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs to Parquet files",
	Long: `Write the runs and node metrics tables to <output-file>.runs.parquet
and <output-file>.node_metrics.parquet.

Examples:
  codepulse runs export --output-file history`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return iocache.ExecuteRunExport(os.Stdout, iocache.Manager.GetRunStore(), viper.GetString("output-file"))
	},
}

// runsMigrateCmd moves the run store schema to a target version.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back run store migrations",
	Long: `Migrate the run store schema. The store migrates to the latest version on open,
so this is mostly needed to roll back.

Examples:
  # Migrate to the latest version
  codepulse runs migrate

  # Roll back everything
  codepulse runs migrate --target-version 0`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfigFile(); err != nil {
			return err
		}
		backend, connStr, err := storeSettings("run-backend", "run-db-connect", schema.SQLiteBackend)
		if err != nil {
			return err
		}
		if backend == schema.NoneBackend {
			return errors.New("cannot migrate the none run backend")
		}
		v, err := iocache.MigrateRuns(backend, connStr, viper.GetInt("target-version"))
		if err != nil {
			return err
		}
		cmd.Printf("Run store is at version %d.\n", v)
		return nil
	},
}
