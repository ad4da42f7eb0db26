package pool

import (
	"fmt"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// Annotation is one coder's judgment of an utterance.
type Annotation struct {
	Category               string
	TotalSyllableCount     int
	CanonicalSyllableCount int
	WordSyllableCount      int
	WordCount              int
	Unusable               bool
	Comments               string
}

func (a *Annotation) validate() error {
	if !models.ValidCategory(a.Category) {
		return fmt.Errorf("pool: unknown category %q", a.Category)
	}
	if a.TotalSyllableCount < 0 || a.CanonicalSyllableCount < 0 ||
		a.WordSyllableCount < 0 || a.WordCount < 0 {
		return fmt.Errorf("pool: negative count in annotation")
	}
	if a.CanonicalSyllableCount > a.TotalSyllableCount {
		return fmt.Errorf("pool: canonical syllables %d exceed total %d",
			a.CanonicalSyllableCount, a.TotalSyllableCount)
	}
	return nil
}

// Submit completes a leased work item with the coder's annotation. The
// transition leased -> completed and the coding record insert commit
// together; the conditional update means a submission racing the reclaim
// sweep resolves to exactly one winner. A work item no longer held by the
// coder is rejected with ErrStaleLease so the caller can request a fresh
// item. Completed slots keep their coder, preserving the distinct-coder
// history.
func Submit(db *gorm.DB, workItemID string, coderID uint, ann Annotation) (*models.CodingRecord, error) {
	if workItemID == "" {
		return nil, fmt.Errorf("pool: workItemID is required")
	}
	if coderID == 0 {
		return nil, fmt.Errorf("pool: coderID is required")
	}
	if err := ann.validate(); err != nil {
		return nil, err
	}

	var record *models.CodingRecord
	err := db.Transaction(func(tx *gorm.DB) error {
		var item models.WorkItem
		if err := tx.Where("id = ?", workItemID).Find(&item).Error; err != nil {
			return fmt.Errorf("pool: load work item %s: %w", workItemID, err)
		}
		if item.ID == "" {
			return ErrStaleLease
		}

		now := time.Now()
		res := tx.Model(&models.WorkItem{}).
			Where("id = ? AND state = ? AND coder_id = ?", workItemID, models.StateLeased, coderID).
			Updates(map[string]interface{}{
				"state":         models.StateCompleted,
				"completed_at":  now,
				"last_activity": now,
			})
		if res.Error != nil {
			return fmt.Errorf("pool: complete work item %s: %w", workItemID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleLease
		}

		// One coder may never hold two of an utterance's slots.
		var held int64
		if err := tx.Model(&models.WorkItem{}).
			Where("utterance_id = ? AND coder_id = ? AND state IN ?",
				item.UtteranceID, coderID,
				[]string{models.StateLeased, models.StateCompleted}).
			Count(&held).Error; err != nil {
			return fmt.Errorf("pool: count coder %d holds on utterance %d: %w", coderID, item.UtteranceID, err)
		}
		if held > 1 {
			return fmt.Errorf("pool: coder %d holds %d slots of utterance %d: %w",
				coderID, held, item.UtteranceID, ErrInvariant)
		}

		record = &models.CodingRecord{
			WorkItemID:                workItemID,
			UtteranceID:               item.UtteranceID,
			CoderID:                   coderID,
			Category:                  ann.Category,
			TotalSyllableCount:        ann.TotalSyllableCount,
			CanonicalSyllableCount:    ann.CanonicalSyllableCount,
			WordSyllableCount:         ann.WordSyllableCount,
			NonCanonicalSyllableCount: ann.TotalSyllableCount - ann.CanonicalSyllableCount,
			WordCount:                 ann.WordCount,
			Unusable:                  ann.Unusable,
			Comments:                  ann.Comments,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("pool: create coding record for work item %s: %w", workItemID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Correct appends a replacement coding record for a previous submission.
// Records are append-only; the original row stays, linked from the new one.
func Correct(db *gorm.DB, recordID uint, coderID uint, ann Annotation) (*models.CodingRecord, error) {
	if err := ann.validate(); err != nil {
		return nil, err
	}

	var prev models.CodingRecord
	if err := db.Where("id = ? AND coder_id = ?", recordID, coderID).
		Find(&prev).Error; err != nil {
		return nil, fmt.Errorf("pool: load coding record %d: %w", recordID, err)
	}
	if prev.ID == 0 {
		return nil, fmt.Errorf("pool: coding record %d not found for coder %d", recordID, coderID)
	}

	record := &models.CodingRecord{
		WorkItemID:                prev.WorkItemID,
		UtteranceID:               prev.UtteranceID,
		CoderID:                   coderID,
		Category:                  ann.Category,
		TotalSyllableCount:        ann.TotalSyllableCount,
		CanonicalSyllableCount:    ann.CanonicalSyllableCount,
		WordSyllableCount:         ann.WordSyllableCount,
		NonCanonicalSyllableCount: ann.TotalSyllableCount - ann.CanonicalSyllableCount,
		WordCount:                 ann.WordCount,
		Unusable:                  ann.Unusable,
		Comments:                  ann.Comments,
		SupersedesID:              &prev.ID,
	}
	if err := db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("pool: create correction for record %d: %w", recordID, err)
	}
	return record, nil
}
