package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manohar-125/ThalAI-App/internal/cli"
	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the run history database to the latest schema.
Other commands migrate on open; this is for preparing a database ahead of time.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	common.LogInfo("Starting database migration", common.Fields{"database": cfg.DatabasePath})

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
		fmt.Sprintf("Database at schema version %d: %s", storage.ExpectedSchemaVersion, cfg.DatabasePath)))
	return nil
}
