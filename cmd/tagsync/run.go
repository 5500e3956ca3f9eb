package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rgehrsitz/tagsync/internal/dbsync"
	"rgehrsitz/tagsync/internal/resolve"
	"rgehrsitz/tagsync/internal/runtime"
	"rgehrsitz/tagsync/internal/store/sqlite"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify every item in the store and write overrides",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	cmd.Flags().Bool("dry-run", false, "report changes without writing overrides")
	cmd.Flags().String("store", "", "item store DSN (overrides config)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dsn := cfg.StoreDSN
	if s, _ := cmd.Flags().GetString("store"); s != "" {
		dsn = s
	}
	if dsn == "" {
		return fmt.Errorf("no item store configured")
	}

	db, err := dbsync.LoadDatabase(ctx, dbsync.NewFileStore(cfg.DataDir), cfg.OverlayPath())
	if err != nil {
		return err
	}

	client, err := sqlite.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer client.Close()

	runner := runtime.NewRunner(client, db, resolve.WithStripPrefix(cfg.StripPrefix))
	runner.DryRun, _ = cmd.Flags().GetBool("dry-run")

	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, matched %d, overridden %d, skipped %d\n",
		report.Scanned, report.Matched, report.Overridden, report.Skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "Changes: %d tag, %d equip, %d animation, %d scripts\n",
		report.TagChanges, report.EquipChanges, report.AnimationChanges, report.ScriptsAttached)
	return nil
}
