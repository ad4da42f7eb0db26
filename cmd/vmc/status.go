package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ndlab/vmc/internal/report"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and per-coder activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	st, err := report.Status(gormDB)
	if err != nil {
		return err
	}

	total := st.Available + st.Leased + st.Completed
	fmt.Fprintf(out, "Work items: %d total — %d available, %d leased, %d completed\n\n",
		total, st.Available, st.Leased, st.Completed)

	if len(st.Coders) == 0 {
		fmt.Fprintln(out, "No coder activity yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODER\tLEASED\tCOMPLETED")
	for _, c := range st.Coders {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Coder, c.Leased, c.Completed)
	}
	return tw.Flush()
}
