package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ndlab/vmc/internal/notify"
	"github.com/ndlab/vmc/internal/pool"
)

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		daemon     bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim orphaned coding leases",
		Long: `Returns leases whose coder has been silent past the lease timeout
to the queue. One pass by default; --daemon keeps sweeping on the configured
cron schedule until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath, daemon)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "sweep continuously on the configured schedule")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string, daemon bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	notifier := notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Channel)
	sweeper := &pool.Sweeper{
		DB:       gormDB,
		Timeout:  cfg.Pool.LeaseTimeout,
		Schedule: cfg.Pool.SweepSchedule,
		Log:      log,
		Notify: func(reclaimed int64) {
			if err := notifier.Notify(cmd.Context(), notify.SweepSummary(reclaimed)); err != nil {
				log.WithError(err).Warn("sweep notification failed")
			}
		},
	}

	if !daemon {
		n, err := sweeper.SweepOnce()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Reclaimed %d orphaned lease(s)\n", n)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "Sweeping on schedule %q (lease timeout %v). Ctrl-C to stop.\n",
		cfg.Pool.SweepSchedule, cfg.Pool.LeaseTimeout)
	if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
