package pool

import (
	"fmt"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// Reclaim returns every lease whose last activity is at least timeout old to
// the available state, clearing the coder. One conditional update covers the
// whole sweep, so a submission landing mid-sweep keeps its completion: the
// state check in the WHERE clause means each row goes to exactly one winner.
func Reclaim(db *gorm.DB, timeout time.Duration) (int64, error) {
	if timeout <= 0 {
		return 0, fmt.Errorf("pool: reclaim timeout must be positive, got %v", timeout)
	}

	cutoff := time.Now().Add(-timeout)
	res := db.Model(&models.WorkItem{}).
		Where("state = ? AND last_activity <= ?", models.StateLeased, cutoff).
		Updates(map[string]interface{}{
			"state":         models.StateAvailable,
			"coder_id":      nil,
			"last_activity": time.Now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("pool: reclaim orphaned leases: %w", res.Error)
	}
	return res.RowsAffected, nil
}
