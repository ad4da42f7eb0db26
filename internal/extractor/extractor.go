// Package extractor materializes target-child utterances from a recording's
// sound-event transcript, keeping only events whose onset falls inside a
// selected interval.
package extractor

import (
	"fmt"

	"github.com/ndlab/vmc/internal/lena"
	"github.com/ndlab/vmc/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result summarizes one extraction run.
type Result struct {
	Created    int // utterances inserted this run
	Duplicates int // already present from an earlier run
	OutsideAny int // target-child events outside every selected window
	NonTarget  int // events with other speaker labels, faint-child included
}

// Extract inserts one Utterance per target-child high-confidence event whose
// onset falls inside a selected interval. Faint-child events are skipped even
// though they denote the same speaker; their timing is not reliable enough to
// code. Re-running over the same transcript is idempotent: the span unique
// index plus conflict-ignore inserts mean no duplicates are ever created.
func Extract(db *gorm.DB, recordingID uint, events []lena.Event, log *logrus.Logger) (*Result, error) {
	var selected []models.Interval
	if err := db.Where("recording_id = ? AND selected = ?", recordingID, true).
		Order("start_seconds ASC").
		Find(&selected).Error; err != nil {
		return nil, fmt.Errorf("extractor: load selected intervals for recording %d: %w", recordingID, err)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("extractor: recording %d has no selected intervals", recordingID)
	}

	res := &Result{}
	for _, ev := range events {
		if ev.Speaker != lena.SpeakerChildNear {
			res.NonTarget++
			continue
		}

		iv := windowFor(selected, ev.StartSeconds)
		if iv == nil {
			res.OutsideAny++
			continue
		}

		u := models.Utterance{
			IntervalID:      iv.ID,
			StartSeconds:    ev.StartSeconds,
			EndSeconds:      ev.EndSeconds,
			DurationSeconds: round4(ev.EndSeconds - ev.StartSeconds),
		}
		out := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&u)
		if out.Error != nil {
			return nil, fmt.Errorf("extractor: insert utterance (%v, %v) in interval %d: %w",
				ev.StartSeconds, ev.EndSeconds, iv.ID, out.Error)
		}
		if out.RowsAffected == 0 {
			res.Duplicates++
			continue
		}
		res.Created++
	}

	log.WithFields(logrus.Fields{
		"recording":  recordingID,
		"created":    res.Created,
		"duplicates": res.Duplicates,
		"outside":    res.OutsideAny,
	}).Info("utterance extraction finished")

	return res, nil
}

// windowFor returns the selected interval containing the onset, or nil.
// Windows never overlap, so at most one interval can match.
func windowFor(selected []models.Interval, onset float64) *models.Interval {
	for i := range selected {
		if selected[i].Contains(onset) {
			return &selected[i]
		}
	}
	return nil
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
