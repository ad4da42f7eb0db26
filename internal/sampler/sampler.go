// Package sampler promotes a recording's five-minute intervals into the
// study sample: the top intervals by child-vocalization count plus a random
// supplement drawn from the remainder.
package sampler

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// Options controls one selection run. Rand must be provided; a seeded source
// makes the random supplement reproducible.
type Options struct {
	HighVolubility   int
	RandomSupplement int
	Rand             *rand.Rand
}

// Result summarizes a selection run for one recording.
type Result struct {
	HighVolubility   int
	RandomSupplement int
	UnderSampled     bool
	Unusable         bool
	AlreadySelected  bool
}

// Total returns the number of intervals promoted in this run.
func (r *Result) Total() int {
	return r.HighVolubility + r.RandomSupplement
}

// Plan holds the selection decision before it is persisted. Indexes refer to
// the eligible slice passed to plan.
type plan struct {
	highVolubility   []int
	randomSupplement []int
	underSampled     bool
}

// SelectSegments runs segment selection for one recording and persists the
// outcome. It is idempotent: a recording with any selected interval is left
// untouched. An empty eligible set is a terminal valid state, recorded as
// unusable-for-sampling, not an error.
func SelectSegments(db *gorm.DB, recordingID uint, opts Options) (*Result, error) {
	if opts.Rand == nil {
		return nil, fmt.Errorf("sampler: random source is required")
	}
	if opts.HighVolubility <= 0 {
		opts.HighVolubility = 10
	}
	if opts.RandomSupplement <= 0 {
		opts.RandomSupplement = 20
	}

	var intervals []models.Interval
	if err := db.Where("recording_id = ?", recordingID).
		Order("start_seconds ASC").
		Find(&intervals).Error; err != nil {
		return nil, fmt.Errorf("sampler: load intervals for recording %d: %w", recordingID, err)
	}

	// Guard against double-selection.
	for _, iv := range intervals {
		if iv.Selected {
			return &Result{AlreadySelected: true}, nil
		}
	}

	var eligible []models.Interval
	for _, iv := range intervals {
		if !iv.Excluded {
			eligible = append(eligible, iv)
		}
	}

	if len(eligible) == 0 {
		if err := db.Model(&models.Recording{}).Where("id = ?", recordingID).
			Update("unusable_for_sampling", true).Error; err != nil {
			return nil, fmt.Errorf("sampler: flag recording %d unusable: %w", recordingID, err)
		}
		return &Result{Unusable: true}, nil
	}

	p := makePlan(eligible, opts)

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		mark := func(indexes []int, criterion string) error {
			for _, i := range indexes {
				res := tx.Model(&models.Interval{}).
					Where("id = ? AND excluded = ?", eligible[i].ID, false).
					Updates(map[string]interface{}{
						"selected":    true,
						"criterion":   criterion,
						"selected_at": now,
					})
				if res.Error != nil {
					return fmt.Errorf("sampler: promote interval %d: %w", eligible[i].ID, res.Error)
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("sampler: interval %d vanished or became excluded mid-selection", eligible[i].ID)
				}
			}
			return nil
		}

		if err := mark(p.highVolubility, models.CriterionHighVolubility); err != nil {
			return err
		}
		if err := mark(p.randomSupplement, models.CriterionRandomSupplement); err != nil {
			return err
		}

		if p.underSampled {
			if err := tx.Model(&models.Recording{}).Where("id = ?", recordingID).
				Update("under_sampled", true).Error; err != nil {
				return fmt.Errorf("sampler: flag recording %d under-sampled: %w", recordingID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		HighVolubility:   len(p.highVolubility),
		RandomSupplement: len(p.randomSupplement),
		UnderSampled:     p.underSampled,
	}, nil
}

// makePlan decides which eligible intervals to promote. The rank by
// child-vocalization count is a stable sort, so ties keep chronological
// order and the outcome is deterministic for a given seed.
func makePlan(eligible []models.Interval, opts Options) plan {
	target := opts.HighVolubility + opts.RandomSupplement

	order := make([]int, len(eligible))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return eligible[order[a]].ChildVocCount > eligible[order[b]].ChildVocCount
	})

	if len(eligible) <= target {
		// Under-sampled: everything is selected, ranked portion first.
		hvCount := opts.HighVolubility
		if hvCount > len(order) {
			hvCount = len(order)
		}
		return plan{
			highVolubility:   order[:hvCount],
			randomSupplement: order[hvCount:],
			underSampled:     len(eligible) < target,
		}
	}

	hv := order[:opts.HighVolubility]
	rest := order[opts.HighVolubility:]

	// Uniform draw without replacement from the remainder.
	perm := opts.Rand.Perm(len(rest))
	rs := make([]int, opts.RandomSupplement)
	for i := 0; i < opts.RandomSupplement; i++ {
		rs[i] = rest[perm[i]]
	}
	sort.Ints(rs)

	return plan{highVolubility: hv, randomSupplement: rs}
}
