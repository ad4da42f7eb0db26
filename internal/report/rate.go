package report

import (
	"sort"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// SessionPause is the idle gap that splits a coder's work into sessions: two
// consecutive submissions more than this far apart belong to different
// sessions.
const SessionPause = 10 * time.Minute

// CoderRate summarizes one coder's throughput over their coding sessions.
// Rates are codes per hour; single-code sessions carry no measurable rate and
// are counted but excluded from the min/max/average.
type CoderRate struct {
	Coder      string
	Codes      int
	Sessions   int
	MinPerHour float64
	MaxPerHour float64
	AvgPerHour float64
}

// CodingRate computes per-coder session statistics over the effective coding
// records in [from, to]. Sorted by coder name.
func CodingRate(db *gorm.DB, from, to *time.Time) ([]CoderRate, error) {
	records, err := currentRecords(db, from, to)
	if err != nil {
		return nil, err
	}
	names, err := coderNames(db)
	if err != nil {
		return nil, err
	}

	byCoder := make(map[uint][]models.CodingRecord)
	for i := range records {
		byCoder[records[i].CoderID] = append(byCoder[records[i].CoderID], records[i])
	}

	rows := make([]CoderRate, 0, len(byCoder))
	for coderID, recs := range byCoder {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		})

		row := CoderRate{Coder: names[coderID], Codes: len(recs)}
		var rates []float64
		for _, session := range splitSessions(recs) {
			row.Sessions++
			if len(session) < 2 {
				continue
			}
			hours := session[len(session)-1].CreatedAt.Sub(session[0].CreatedAt).Hours()
			if hours <= 0 {
				continue
			}
			rates = append(rates, float64(len(session))/hours)
		}
		if len(rates) > 0 {
			row.MinPerHour, row.MaxPerHour = rates[0], rates[0]
			var sum float64
			for _, r := range rates {
				if r < row.MinPerHour {
					row.MinPerHour = r
				}
				if r > row.MaxPerHour {
					row.MaxPerHour = r
				}
				sum += r
			}
			row.AvgPerHour = sum / float64(len(rates))
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Coder < rows[j].Coder })
	return rows, nil
}

// splitSessions cuts a coder's time-ordered records wherever the gap between
// neighbors exceeds SessionPause.
func splitSessions(recs []models.CodingRecord) [][]models.CodingRecord {
	var sessions [][]models.CodingRecord
	var current []models.CodingRecord
	for i := range recs {
		current = append(current, recs[i])
		last := i == len(recs)-1
		if !last && recs[i+1].CreatedAt.Sub(recs[i].CreatedAt) > SessionPause {
			sessions = append(sessions, current)
			current = nil
		}
	}
	if len(current) > 0 {
		sessions = append(sessions, current)
	}
	return sessions
}
