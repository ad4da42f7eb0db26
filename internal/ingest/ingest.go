// Package ingest registers daylong recordings and their five-minute
// intervals from the parsed activity report.
package ingest

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ndlab/vmc/internal/lena"
	"github.com/ndlab/vmc/internal/models"
)

// RecordingInfo identifies the recording being ingested.
type RecordingInfo struct {
	AssessmentID  string
	RecordingType string
	ParticipantID string
	RecordingDate time.Time
	BaseFileName  string
}

func (info *RecordingInfo) validate() error {
	if info.AssessmentID == "" {
		return fmt.Errorf("ingest: assessment ID is required")
	}
	if info.ParticipantID == "" {
		return fmt.Errorf("ingest: participant ID is required")
	}
	if info.BaseFileName == "" {
		return fmt.Errorf("ingest: base file name is required")
	}
	switch info.RecordingType {
	case models.RecordingTypeHome, models.RecordingTypeClinic:
	case "":
		info.RecordingType = models.RecordingTypeHome
	default:
		return fmt.Errorf("ingest: unknown recording type %q", info.RecordingType)
	}
	return nil
}

// Result summarizes one ingest run.
type Result struct {
	RecordingID uint
	Intervals   int // interval rows inserted this run
	Duplicates  int // rows already present
	Foreign     int // rows for a different assessment, skipped
}

// Recording registers the recording and its interval rows. Idempotent: the
// recording is matched on (assessment, type) and interval rows land on the
// (recording, start) unique index with a conflict-ignore, so a re-run of the
// same report adds nothing. Rows naming a different assessment are skipped
// and logged.
func Recording(db *gorm.DB, info RecordingInfo, rows []lena.IntervalRow, log *logrus.Logger) (*Result, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	rec := models.Recording{
		AssessmentID:  info.AssessmentID,
		RecordingType: info.RecordingType,
	}
	err := db.Where("assessment_id = ? AND recording_type = ?",
		info.AssessmentID, info.RecordingType).
		Attrs(models.Recording{
			ParticipantID: info.ParticipantID,
			RecordingDate: info.RecordingDate,
			BaseFileName:  info.BaseFileName,
			IsValid:       true,
		}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("ingest: register recording %s: %w", info.AssessmentID, err)
	}

	res := &Result{RecordingID: rec.ID}
	for _, row := range rows {
		if row.AssessmentID != info.AssessmentID {
			res.Foreign++
			log.WithFields(logrus.Fields{
				"recording": info.AssessmentID,
				"row":       row.AssessmentID,
			}).Warn("interval row for a different assessment skipped")
			continue
		}

		iv := models.Interval{
			RecordingID:   rec.ID,
			StartSeconds:  row.StartSeconds,
			EndSeconds:    row.EndSeconds,
			ChildVocCount: row.ChildVocCount,
			Excluded:      row.Excluded,
		}
		out := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&iv)
		if out.Error != nil {
			return nil, fmt.Errorf("ingest: create interval at %v for %s: %w",
				row.StartSeconds, info.AssessmentID, out.Error)
		}
		if out.RowsAffected == 0 {
			res.Duplicates++
		} else {
			res.Intervals++
		}
	}

	log.WithFields(logrus.Fields{
		"recording":  info.AssessmentID,
		"intervals":  res.Intervals,
		"duplicates": res.Duplicates,
		"foreign":    res.Foreign,
	}).Info("recording ingested")
	return res, nil
}
