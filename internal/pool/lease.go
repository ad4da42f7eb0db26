package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// leaseBatch is how many candidates one lease attempt fetches before
// re-querying. Contested candidates are skipped via the compare-and-swap, so
// a batch only needs to outlast a burst of racing coders.
const leaseBatch = 16

// Lease atomically checks out one available work item for the coder. The
// allocation policy is oldest-created-first, which also prevents starvation:
// reclaimed orphans rejoin the queue under their original creation time.
//
// Eligibility enforces the distinct-coder invariant: a work item is skipped
// when its utterance already has a slot leased to or completed by this coder.
// The state transition is a conditional single-row update, so two coders
// racing for the same item can never both succeed; the loser moves on to the
// next candidate. Returns ErrQueueExhausted when nothing is eligible.
func Lease(db *gorm.DB, coderID uint) (*models.WorkItem, error) {
	if coderID == 0 {
		return nil, fmt.Errorf("pool: coderID is required")
	}

	for {
		candidates, err := eligibleCandidates(db, coderID, leaseBatch)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, ErrQueueExhausted
		}

		for i := range candidates {
			item, err := tryLease(db, &candidates[i], coderID)
			if err != nil {
				return nil, err
			}
			if item != nil {
				return item, nil
			}
			// Lost the race for this candidate; try the next.
		}
	}
}

func eligibleCandidates(db *gorm.DB, coderID uint, limit int) ([]models.WorkItem, error) {
	held := db.Model(&models.WorkItem{}).
		Select("utterance_id").
		Where("coder_id = ? AND state IN ?", coderID,
			[]string{models.StateLeased, models.StateCompleted})

	var candidates []models.WorkItem
	err := db.Where("state = ?", models.StateAvailable).
		Where("utterance_id NOT IN (?)", held).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("pool: find eligible work items for coder %d: %w", coderID, err)
	}
	return candidates, nil
}

// tryLease performs the compare-and-swap: available -> leased, iff the row is
// still available and the coder still holds nothing for the utterance. A nil
// item with nil error means the candidate was lost to a competitor.
func tryLease(db *gorm.DB, candidate *models.WorkItem, coderID uint) (*models.WorkItem, error) {
	now := time.Now()

	var leased *models.WorkItem
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WorkItem{}).
			Where("id = ? AND state = ?", candidate.ID, models.StateAvailable).
			Updates(map[string]interface{}{
				"state":         models.StateLeased,
				"coder_id":      coderID,
				"last_activity": now,
			})
		if res.Error != nil {
			return fmt.Errorf("pool: lease work item %s: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}

		// The candidate read and the swap are separate statements, so a
		// competitor may have leased and completed a sibling slot for this
		// coder in between. Re-check inside the transaction and back out.
		var held int64
		if err := tx.Model(&models.WorkItem{}).
			Where("utterance_id = ? AND coder_id = ? AND state IN ?",
				candidate.UtteranceID, coderID,
				[]string{models.StateLeased, models.StateCompleted}).
			Count(&held).Error; err != nil {
			return fmt.Errorf("pool: recheck coder %d holds on utterance %d: %w",
				coderID, candidate.UtteranceID, err)
		}
		if held > 1 {
			return errLostRace
		}

		leased = &models.WorkItem{
			ID:           candidate.ID,
			UtteranceID:  candidate.UtteranceID,
			Slot:         candidate.Slot,
			State:        models.StateLeased,
			CoderID:      &coderID,
			LastActivity: now,
			CreatedAt:    candidate.CreatedAt,
		}
		return nil
	})

	if errors.Is(err, errLostRace) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// errLostRace aborts a lease transaction without surfacing an error.
var errLostRace = errors.New("pool: candidate lost to a competing coder")

// Abandon explicitly returns a leased work item to the queue, clearing the
// coder. Used when a coder gives an item back instead of timing out.
func Abandon(db *gorm.DB, workItemID string, coderID uint) error {
	if workItemID == "" {
		return fmt.Errorf("pool: workItemID is required")
	}
	res := db.Model(&models.WorkItem{}).
		Where("id = ? AND state = ? AND coder_id = ?", workItemID, models.StateLeased, coderID).
		Updates(map[string]interface{}{
			"state":         models.StateAvailable,
			"coder_id":      nil,
			"last_activity": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("pool: abandon work item %s: %w", workItemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleLease
	}
	return nil
}

// Heartbeat moves a leased work item's activity timestamp forward, keeping
// the lease out of the reclaim sweep's reach. The timestamp only ever moves
// forward. Returns ErrStaleLease if the coder no longer holds the item.
func Heartbeat(db *gorm.DB, workItemID string, coderID uint) error {
	if workItemID == "" {
		return fmt.Errorf("pool: workItemID is required")
	}
	now := time.Now()
	res := db.Model(&models.WorkItem{}).
		Where("id = ? AND state = ? AND coder_id = ? AND last_activity < ?",
			workItemID, models.StateLeased, coderID, now).
		Update("last_activity", now)
	if res.Error != nil {
		return fmt.Errorf("pool: heartbeat work item %s: %w", workItemID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the lease is gone or the clock has not advanced past the
		// stored timestamp; only the former is reportable.
		var n int64
		if err := db.Model(&models.WorkItem{}).
			Where("id = ? AND state = ? AND coder_id = ?", workItemID, models.StateLeased, coderID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("pool: verify lease %s: %w", workItemID, err)
		}
		if n == 0 {
			return ErrStaleLease
		}
	}
	return nil
}
