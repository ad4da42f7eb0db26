package clips

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ndlab/vmc/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Builder cuts clips and computes pitch summaries for a recording's
// utterances, persisting both on the Utterance rows.
type Builder struct {
	DB        *gorm.DB
	Estimator Estimator
	Log       *logrus.Logger
}

// Result summarizes one builder run.
type Result struct {
	Clips            int
	PitchUnavailable int
}

// LoadRecordingAudio reads and decodes the daylong WAV for a recording.
func LoadRecordingAudio(audioFolder, baseFileName string) (*WAV, error) {
	path := filepath.Join(audioFolder, baseFileName+".wav")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clips: read recording audio %s: %w", path, err)
	}
	w, err := DecodeWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("clips: decode %s: %w", path, err)
	}
	return w, nil
}

// BuildRecording cuts a clip and computes a pitch summary for every
// utterance of the recording's selected intervals. Safe to re-run: each
// utterance's clip and summary are overwritten, never accumulated. A pitch
// failure is recorded as absent and never fails the run.
func (b *Builder) BuildRecording(ctx context.Context, recordingID uint, audio *WAV, baseFileName string) (*Result, error) {
	var utterances []models.Utterance
	err := b.DB.
		Joins("JOIN intervals ON intervals.id = utterances.interval_id").
		Where("intervals.recording_id = ? AND intervals.selected = ?", recordingID, true).
		Order("utterances.start_seconds ASC").
		Find(&utterances).Error
	if err != nil {
		return nil, fmt.Errorf("clips: load utterances for recording %d: %w", recordingID, err)
	}

	res := &Result{}
	for i := range utterances {
		if err := b.buildOne(ctx, &utterances[i], audio, baseFileName, res); err != nil {
			return nil, err
		}
	}

	b.Log.WithFields(logrus.Fields{
		"recording":   recordingID,
		"clips":       res.Clips,
		"unavailable": res.PitchUnavailable,
	}).Info("clip and pitch build finished")

	return res, nil
}

func (b *Builder) buildOne(ctx context.Context, u *models.Utterance, audio *WAV, baseFileName string, res *Result) error {
	clip, err := audio.Cut(u.StartSeconds, u.EndSeconds)
	if err != nil {
		return fmt.Errorf("clips: cut utterance %d (%v, %v): %w", u.ID, u.StartSeconds, u.EndSeconds, err)
	}

	updates := map[string]interface{}{
		"clip_file_name": fmt.Sprintf("%s_%v_%v.wav", baseFileName, u.StartSeconds, u.EndSeconds),
		"clip_data":      clip,
		"pitch_min":      nil,
		"pitch_max":      nil,
		"pitch_mean":     nil,
		"pitch_range":    nil,
	}

	summary, err := b.Estimator.Estimate(ctx, clip)
	switch {
	case err == nil:
		updates["pitch_min"] = summary.Min
		updates["pitch_max"] = summary.Max
		updates["pitch_mean"] = summary.Mean
		updates["pitch_range"] = summary.Range()
	case errors.Is(err, ErrUnavailable):
		res.PitchUnavailable++
		b.Log.WithFields(logrus.Fields{"utterance": u.ID, "reason": err}).
			Warn("pitch summary unavailable")
	default:
		// Unexpected estimator errors are still non-fatal to the pipeline.
		res.PitchUnavailable++
		b.Log.WithFields(logrus.Fields{"utterance": u.ID, "error": err}).
			Warn("pitch estimation failed")
	}

	if err := b.DB.Model(&models.Utterance{}).Where("id = ?", u.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("clips: persist clip for utterance %d: %w", u.ID, err)
	}
	res.Clips++
	return nil
}
