package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PopulateResult summarizes a populate run.
type PopulateResult struct {
	Utterances int // utterances examined
	Created    int // work items inserted this run
}

// PopulateRecording creates the missing work items, up to the full complement
// of three, for every utterance of the recording's selected intervals.
// Idempotent and race-safe: each slot is keyed by the (utterance, slot)
// unique index and inserted with a conflict-ignore, so repeated or
// concurrent runs can never produce a fourth slot.
func PopulateRecording(db *gorm.DB, recordingID uint) (*PopulateResult, error) {
	var utteranceIDs []uint
	err := db.Model(&models.Utterance{}).
		Joins("JOIN intervals ON intervals.id = utterances.interval_id").
		Where("intervals.recording_id = ? AND intervals.selected = ?", recordingID, true).
		Order("utterances.id ASC").
		Pluck("utterances.id", &utteranceIDs).Error
	if err != nil {
		return nil, fmt.Errorf("pool: load utterances for recording %d: %w", recordingID, err)
	}
	return populate(db, utteranceIDs)
}

// PopulateAll creates missing work items for every utterance in the study.
func PopulateAll(db *gorm.DB) (*PopulateResult, error) {
	var utteranceIDs []uint
	if err := db.Model(&models.Utterance{}).Order("id ASC").
		Pluck("id", &utteranceIDs).Error; err != nil {
		return nil, fmt.Errorf("pool: load utterances: %w", err)
	}
	return populate(db, utteranceIDs)
}

func populate(db *gorm.DB, utteranceIDs []uint) (*PopulateResult, error) {
	res := &PopulateResult{Utterances: len(utteranceIDs)}
	now := time.Now()

	for _, uid := range utteranceIDs {
		for slot := 1; slot <= models.CoderSlots; slot++ {
			item := models.WorkItem{
				ID:           uuid.NewString(),
				UtteranceID:  uid,
				Slot:         slot,
				State:        models.StateAvailable,
				LastActivity: now,
			}
			out := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
			if out.Error != nil {
				return nil, fmt.Errorf("pool: create slot %d for utterance %d: %w", slot, uid, out.Error)
			}
			res.Created += int(out.RowsAffected)
		}

		var n int64
		if err := db.Model(&models.WorkItem{}).
			Where("utterance_id = ?", uid).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("pool: count slots for utterance %d: %w", uid, err)
		}
		if n != models.CoderSlots {
			return nil, fmt.Errorf("pool: utterance %d has %d slots: %w", uid, n, ErrInvariant)
		}
	}
	return res, nil
}
