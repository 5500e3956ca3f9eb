package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/tagsync/internal/dbsync"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download and apply new rule database patches",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}
	cmd.Flags().String("manifest", "", "patch manifest URL (overrides config)")
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manifest := cfg.ManifestURL
	if m, _ := cmd.Flags().GetString("manifest"); m != "" {
		manifest = m
	}
	if manifest == "" {
		return fmt.Errorf("no manifest URL configured")
	}

	s := dbsync.New(dbsync.NewHTTPFetcher(cfg.FetchTimeout), dbsync.NewFileStore(cfg.DataDir))
	res, err := s.Sync(cmd.Context(), manifest)
	if err != nil {
		return err
	}
	if res.Err != nil {
		// the local database stays usable, so this is not a failure
		log.Warn().Err(res.Err).Int("patchVersion", res.Version).Msg("Synchronization stopped early")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Patch version %d (applied %d)\n", res.Version, res.Applied)
	return nil
}
