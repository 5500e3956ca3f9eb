package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rgehrsitz/tagsync/internal/dbsync"
	"rgehrsitz/tagsync/internal/migrate"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the local rule database to the current schema",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	from, err := dbsync.MigrateStored(cmd.Context(), dbsync.NewFileStore(cfg.DataDir))
	if err != nil {
		return err
	}
	if from == migrate.CurrentSchemaVersion {
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d is current\n", from)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated schema version %d -> %d\n", from, migrate.CurrentSchemaVersion)
	return nil
}
