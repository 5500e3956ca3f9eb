package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rgehrsitz/tagsync/internal/dbsync"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate the local rule database",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	cmd.Flags().Bool("no-overlays", false, "ignore local overlay patches")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overlays := cfg.OverlayPath()
	if skip, _ := cmd.Flags().GetBool("no-overlays"); skip {
		overlays = ""
	}

	db, err := dbsync.LoadDatabase(cmd.Context(), dbsync.NewFileStore(cfg.DataDir), overlays)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: schema %d, patch %d, %d tags\n", cfg.DatabasePath(), db.SchemaVersion, db.PatchVersion, len(db.Tags))
	for _, key := range db.Keys() {
		tag := db.Tags[key]
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %d names, %d includes, animation %q\n", key, len(tag.CommonNames), len(tag.IncludeItems), tag.AnimationDefault)
	}
	return nil
}
