package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rgehrsitz/tagsync/internal/store"
	"rgehrsitz/tagsync/internal/store/sqlite"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Load items, tag entities and the load order into the item store",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().String("store", "", "item store DSN (overrides config)")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dsn := cfg.StoreDSN
	if s, _ := cmd.Flags().GetString("store"); s != "" {
		dsn = s
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	client, err := sqlite.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Import(ctx, snap); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items, %d tag entities, %d mods\n", len(snap.Items), len(snap.Entities), len(snap.LoadOrder))
	return nil
}
