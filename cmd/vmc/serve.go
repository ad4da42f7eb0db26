package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ndlab/vmc/internal/api"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the coder-facing API server",
		Long: `Serves the JSON API the coding GUI uses to fetch, heartbeat, and
submit work items. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = api.Start(ctx, api.StartOpts{
		DB:   gormDB,
		Addr: cfg.API.Listen,
		Out:  cmd.OutOrStdout(),
	})
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
