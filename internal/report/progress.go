package report

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// ProgressRow is one coder's completed-code count for one calendar day.
type ProgressRow struct {
	Coder string
	Day   string // 2006-01-02
	Codes int
}

// Progress aggregates effective coding records per coder per day, sorted by
// coder name then day. Superseded records do not count twice.
func Progress(db *gorm.DB, from, to *time.Time) ([]ProgressRow, error) {
	records, err := currentRecords(db, from, to)
	if err != nil {
		return nil, err
	}
	names, err := coderNames(db)
	if err != nil {
		return nil, err
	}

	type key struct {
		coder string
		day   string
	}
	counts := make(map[key]int)
	for i := range records {
		k := key{
			coder: names[records[i].CoderID],
			day:   records[i].CreatedAt.Format("2006-01-02"),
		}
		counts[k]++
	}

	rows := make([]ProgressRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, ProgressRow{Coder: k.coder, Day: k.day, Codes: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Coder != rows[j].Coder {
			return rows[i].Coder < rows[j].Coder
		}
		return rows[i].Day < rows[j].Day
	})
	return rows, nil
}
