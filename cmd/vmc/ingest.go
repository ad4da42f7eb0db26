package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ndlab/vmc/internal/ingest"
	"github.com/ndlab/vmc/internal/lena"
)

func newIngestCmd() *cobra.Command {
	var (
		configPath    string
		assessmentID  string
		recordingType string
		participantID string
		dateStr       string
		baseFileName  string
		reportPath    string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Register a recording and its interval report",
		Long: `Registers a daylong recording and loads its per-interval activity
report. Re-running with the same report is harmless; existing intervals are
left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, configPath, ingestArgs{
				assessmentID:  assessmentID,
				recordingType: recordingType,
				participantID: participantID,
				dateStr:       dateStr,
				baseFileName:  baseFileName,
				reportPath:    reportPath,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment ID, e.g. 5651_5")
	cmd.Flags().StringVar(&recordingType, "type", "", "recording type: home or clinic (default home)")
	cmd.Flags().StringVar(&participantID, "participant", "", "participant (child) ID")
	cmd.Flags().StringVar(&dateStr, "date", "", "recording date, YYYY-MM-DD")
	cmd.Flags().StringVar(&baseFileName, "base-file", "", "audio base file name (without .wav)")
	cmd.Flags().StringVar(&reportPath, "report", "", "path to the per-interval activity report CSV")
	cmd.MarkFlagRequired("assessment")
	cmd.MarkFlagRequired("participant")
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("base-file")
	cmd.MarkFlagRequired("report")
	return cmd
}

type ingestArgs struct {
	assessmentID  string
	recordingType string
	participantID string
	dateStr       string
	baseFileName  string
	reportPath    string
}

func runIngest(cmd *cobra.Command, configPath string, args ingestArgs) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}

	date, err := time.Parse("2006-01-02", args.dateStr)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", args.dateStr, err)
	}

	f, err := os.Open(args.reportPath)
	if err != nil {
		return fmt.Errorf("open report %s: %w", args.reportPath, err)
	}
	defer f.Close()

	log := logrus.New()
	rows, err := lena.ReadIntervalReport(f, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Read %d interval rows from %s\n", len(rows), args.reportPath)

	res, err := ingest.Recording(gormDB, ingest.RecordingInfo{
		AssessmentID:  args.assessmentID,
		RecordingType: args.recordingType,
		ParticipantID: args.participantID,
		RecordingDate: date,
		BaseFileName:  args.baseFileName,
	}, rows, log)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Recording %s registered (id %d): %d intervals added, %d already present\n",
		args.assessmentID, res.RecordingID, res.Intervals, res.Duplicates)
	if res.Foreign > 0 {
		fmt.Fprintf(out, "Skipped %d rows naming a different assessment\n", res.Foreign)
	}
	return nil
}
