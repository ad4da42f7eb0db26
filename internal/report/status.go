package report

import (
	"fmt"
	"sort"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// CoderLoad is one coder's live footprint on the queue.
type CoderLoad struct {
	Coder     string
	Leased    int64
	Completed int64
}

// QueueStatus is a point-in-time snapshot of the assignment engine.
type QueueStatus struct {
	Available int64
	Leased    int64
	Completed int64
	Coders    []CoderLoad
}

// Status snapshots work-item counts by state and per coder.
func Status(db *gorm.DB) (*QueueStatus, error) {
	st := &QueueStatus{}
	for _, c := range []struct {
		state string
		dst   *int64
	}{
		{models.StateAvailable, &st.Available},
		{models.StateLeased, &st.Leased},
		{models.StateCompleted, &st.Completed},
	} {
		if err := db.Model(&models.WorkItem{}).
			Where("state = ?", c.state).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("report: count %s work items: %w", c.state, err)
		}
	}

	names, err := coderNames(db)
	if err != nil {
		return nil, err
	}

	type loadRow struct {
		CoderID uint
		State   string
		N       int64
	}
	var loads []loadRow
	err = db.Model(&models.WorkItem{}).
		Select("coder_id, state, COUNT(*) AS n").
		Where("coder_id IS NOT NULL").
		Group("coder_id, state").
		Scan(&loads).Error
	if err != nil {
		return nil, fmt.Errorf("report: count per-coder work items: %w", err)
	}

	byCoder := make(map[uint]*CoderLoad)
	for _, l := range loads {
		cl, ok := byCoder[l.CoderID]
		if !ok {
			cl = &CoderLoad{Coder: names[l.CoderID]}
			byCoder[l.CoderID] = cl
		}
		switch l.State {
		case models.StateLeased:
			cl.Leased = l.N
		case models.StateCompleted:
			cl.Completed = l.N
		}
	}
	for _, cl := range byCoder {
		st.Coders = append(st.Coders, *cl)
	}
	sort.Slice(st.Coders, func(i, j int) bool { return st.Coders[i].Coder < st.Coders[j].Coder })
	return st, nil
}
