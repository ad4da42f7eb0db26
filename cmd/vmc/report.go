package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ndlab/vmc/internal/report"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Coding reports",
	}
	cmd.AddCommand(newReportProgressCmd())
	cmd.AddCommand(newReportRateCmd())
	cmd.AddCommand(newReportConsensusCmd())
	return cmd
}

func newReportProgressCmd() *cobra.Command {
	var (
		configPath string
		fromStr    string
		toStr      string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Per-coder daily completed-code counts (CSV)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := openDB(configPath)
			if err != nil {
				return err
			}
			from, to, err := parseDateRange(fromStr, toStr)
			if err != nil {
				return err
			}
			rows, err := report.Progress(gormDB, from, to)
			if err != nil {
				return err
			}
			return withOutput(cmd, output, func(w io.Writer) error {
				return report.WriteProgressCSV(w, rows)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&fromStr, "from", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "end date, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to file instead of stdout")
	return cmd
}

func newReportRateCmd() *cobra.Command {
	var (
		configPath string
		fromStr    string
		toStr      string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Per-coder session coding rates (CSV)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := openDB(configPath)
			if err != nil {
				return err
			}
			from, to, err := parseDateRange(fromStr, toStr)
			if err != nil {
				return err
			}
			rows, err := report.CodingRate(gormDB, from, to)
			if err != nil {
				return err
			}
			return withOutput(cmd, output, func(w io.Writer) error {
				return report.WriteRateCSV(w, rows)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&fromStr, "from", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "end date, YYYY-MM-DD (inclusive)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to file instead of stdout")
	return cmd
}

func newReportConsensusCmd() *cobra.Command {
	var (
		configPath string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Three-code consensus export for fully-coded utterances (CSV)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := openDB(configPath)
			if err != nil {
				return err
			}
			rows, err := report.Consensus(gormDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d fully-coded utterances\n", len(rows))
			return withOutput(cmd, output, func(w io.Writer) error {
				return report.WriteConsensusCSV(w, rows)
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to file instead of stdout")
	return cmd
}

// parseDateRange converts optional YYYY-MM-DD bounds; the end date is
// extended to the end of its day so it is inclusive.
func parseDateRange(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parse --from %q: %w", fromStr, err)
		}
		from = &t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return nil, nil, fmt.Errorf("parse --to %q: %w", toStr, err)
		}
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	return from, to, nil
}

func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
