// Package report builds the administrative views over coding output: daily
// per-coder progress, coding-rate sessions, the three-code consensus export,
// and the live queue status. Reports aggregate in memory after a single
// query; correction records supersede the rows they point at.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// currentRecords returns the effective coding records, newest corrections
// substituted for the rows they supersede.
func currentRecords(db *gorm.DB, from, to *time.Time) ([]models.CodingRecord, error) {
	q := db.Model(&models.CodingRecord{}).Order("created_at ASC, id ASC")
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}

	var records []models.CodingRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("report: load coding records: %w", err)
	}

	superseded := make(map[uint]bool)
	for i := range records {
		if records[i].SupersedesID != nil {
			superseded[*records[i].SupersedesID] = true
		}
	}
	out := records[:0]
	for i := range records {
		if !superseded[records[i].ID] {
			out = append(out, records[i])
		}
	}
	return out, nil
}

// coderNames maps coder IDs to display names, falling back to the username
// when no real name is on file.
func coderNames(db *gorm.DB) (map[uint]string, error) {
	var coders []models.Coder
	if err := db.Find(&coders).Error; err != nil {
		return nil, fmt.Errorf("report: load coders: %w", err)
	}
	names := make(map[uint]string, len(coders))
	for _, c := range coders {
		name := strings.TrimSpace(c.FirstName + " " + c.LastName)
		if name == "" {
			name = c.Username
		}
		names[c.ID] = name
	}
	return names, nil
}
