package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ndlab/vmc/internal/config"
	"github.com/ndlab/vmc/internal/db"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vmc",
		Short: "VMC — vocal maturity coding pipeline",
		Long:  "VMC samples utterances from daylong child audio recordings and runs the coding assignment queue.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCoderCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vmc %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// openDB loads the config and connects to the lab database.
func openDB(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
