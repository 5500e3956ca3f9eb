package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tagsync",
		Short:        "Rule-driven item tagging with a versioned rule database",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().String("config", "", "path to the YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (overrides config)")
	root.AddCommand(syncCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(runCmd())
	root.AddCommand(importCmd())
	root.AddCommand(versionCmd())
	return root
}
