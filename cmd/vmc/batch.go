package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ndlab/vmc/internal/clips"
	"github.com/ndlab/vmc/internal/config"
	"github.com/ndlab/vmc/internal/extractor"
	"github.com/ndlab/vmc/internal/lena"
	"github.com/ndlab/vmc/internal/models"
	"github.com/ndlab/vmc/internal/notify"
	"github.com/ndlab/vmc/internal/pool"
	"github.com/ndlab/vmc/internal/sampler"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Recording batch commands",
	}
	cmd.AddCommand(newBatchCreateCmd())
	return cmd
}

func newBatchCreateCmd() *cobra.Command {
	var (
		configPath     string
		assessmentID   string
		transcriptPath string
		seed           int64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the full sampling pipeline for a recording",
		Long: `Selects intervals, extracts target-child utterances from the
transcript, cuts clips with pitch summaries, and queues the coding work
items. Each stage is idempotent, so a failed run can be repeated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchCreate(cmd, configPath, assessmentID, transcriptPath, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vmc.yaml", "path to VMC config file")
	cmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment ID to process")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "path to the sound-event transcript XML")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for the supplement draw (0 = time-based)")
	cmd.MarkFlagRequired("assessment")
	cmd.MarkFlagRequired("transcript")
	return cmd
}

func runBatchCreate(cmd *cobra.Command, configPath, assessmentID, transcriptPath string, seed int64) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openDB(configPath)
	if err != nil {
		return err
	}
	log := logrus.New()

	var rec models.Recording
	if err := gormDB.Where("assessment_id = ?", assessmentID).Find(&rec).Error; err != nil {
		return fmt.Errorf("look up recording %s: %w", assessmentID, err)
	}
	if rec.ID == 0 {
		return fmt.Errorf("recording %s not found; run vmc ingest first", assessmentID)
	}

	// Stage 1: interval selection.
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sel, err := sampler.SelectSegments(gormDB, rec.ID, sampler.Options{
		HighVolubility:   cfg.Sampling.HighVolubility,
		RandomSupplement: cfg.Sampling.RandomSupplement,
		Rand:             rand.New(rand.NewSource(seed)),
	})
	if err != nil {
		return err
	}
	switch {
	case sel.AlreadySelected:
		fmt.Fprintf(out, "Intervals already selected for %s, keeping the existing sample\n", assessmentID)
	case sel.Unusable:
		fmt.Fprintf(out, "Recording %s has no usable intervals; marked unusable for sampling\n", assessmentID)
		return nil
	default:
		fmt.Fprintf(out, "Selected %d intervals (%d high-volubility, %d random)",
			sel.Total(), sel.HighVolubility, sel.RandomSupplement)
		if sel.UnderSampled {
			fmt.Fprint(out, " — under-sampled")
		}
		fmt.Fprintln(out)
	}

	// Stage 2: utterance extraction.
	tf, err := os.Open(transcriptPath)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", transcriptPath, err)
	}
	events, err := lena.ReadTranscript(tf, log)
	tf.Close()
	if err != nil {
		return err
	}
	ext, err := extractor.Extract(gormDB, rec.ID, events, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Extracted %d utterances (%d already present, %d outside the sample, %d non-target)\n",
		ext.Created, ext.Duplicates, ext.OutsideAny, ext.NonTarget)

	// Stage 3: clips and pitch.
	audio, err := clips.LoadRecordingAudio(cfg.AudioFolder, rec.BaseFileName)
	if err != nil {
		return err
	}
	builder := &clips.Builder{
		DB:        gormDB,
		Estimator: pitchEstimator(cfg),
		Log:       log,
	}
	built, err := builder.BuildRecording(cmd.Context(), rec.ID, audio, rec.BaseFileName)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Built %d clips (%d without a pitch summary)\n", built.Clips, built.PitchUnavailable)

	// Stage 4: queue the coding work.
	pop, err := pool.PopulateRecording(gormDB, rec.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued %d work items across %d utterances\n", pop.Created, pop.Utterances)

	notifyBatch(cmd.Context(), cfg, gormDB, rec.ID, assessmentID, pop, log)

	fmt.Fprintf(out, "\nBatch for %s ready.\n", assessmentID)
	return nil
}

// pitchEstimator builds the production estimator from config; with no
// command configured every utterance is stored without a pitch summary.
func pitchEstimator(cfg *config.Config) clips.Estimator {
	fields := strings.Fields(cfg.Pitch.Command)
	if len(fields) == 0 {
		return clips.EstimatorFunc(func(ctx context.Context, clip []byte) (clips.Summary, error) {
			return clips.Summary{}, clips.ErrUnavailable
		})
	}
	return &clips.ExecEstimator{Command: fields[0], Args: fields[1:]}
}

func notifyBatch(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, recordingID uint,
	assessmentID string, pop *pool.PopulateResult, log *logrus.Logger) {
	notifier := notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Channel)

	var intervals int64
	gormDB.Model(&models.Interval{}).
		Where("recording_id = ? AND selected = ?", recordingID, true).
		Count(&intervals)

	event := notify.BatchSummary(assessmentID, int(intervals), pop.Utterances, pop.Utterances*models.CoderSlots)
	if err := notifier.Notify(ctx, event); err != nil {
		log.WithError(err).Warn("batch notification failed")
	}
}
