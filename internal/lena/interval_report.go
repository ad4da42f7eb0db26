// Package lena reads the automatic exports produced for each daylong
// recording: the per-interval activity report (CSV) and the sound-event
// transcript (ITS XML).
package lena

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// IntervalRow is one five-minute interval from the activity report.
type IntervalRow struct {
	AssessmentID  string
	StartSeconds  float64
	EndSeconds    float64
	ChildVocCount int
	Excluded      bool
}

// Columns the interval report must carry. Extra columns are ignored.
var intervalColumns = []string{"AssessmentID", "StartTime", "EndTime", "CV_COUNT", "Excluded"}

// ReadIntervalReport parses a per-interval activity report. A malformed row
// is skipped and logged; it never aborts the rest of the file.
func ReadIntervalReport(r io.Reader, log *logrus.Logger) ([]IntervalRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("lena: read interval report header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range intervalColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("lena: interval report missing column %q", col)
		}
	}

	var rows []IntervalRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithFields(logrus.Fields{"line": line, "error": err}).
				Warn("skipping unreadable interval row")
			continue
		}

		row, err := parseIntervalRow(record, idx)
		if err != nil {
			log.WithFields(logrus.Fields{"line": line, "error": err}).
				Warn("skipping malformed interval row")
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseIntervalRow(record []string, idx map[string]int) (IntervalRow, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[idx[name]])
	}

	start, err := strconv.ParseFloat(field("StartTime"), 64)
	if err != nil {
		return IntervalRow{}, fmt.Errorf("start time %q: %w", field("StartTime"), err)
	}
	end, err := strconv.ParseFloat(field("EndTime"), 64)
	if err != nil {
		return IntervalRow{}, fmt.Errorf("end time %q: %w", field("EndTime"), err)
	}
	if end <= start {
		return IntervalRow{}, fmt.Errorf("end %v not after start %v", end, start)
	}

	cvc, err := strconv.Atoi(field("CV_COUNT"))
	if err != nil {
		return IntervalRow{}, fmt.Errorf("child vocalization count %q: %w", field("CV_COUNT"), err)
	}

	excluded, err := parseFlag(field("Excluded"))
	if err != nil {
		return IntervalRow{}, err
	}

	return IntervalRow{
		AssessmentID:  field("AssessmentID"),
		StartSeconds:  start,
		EndSeconds:    end,
		ChildVocCount: cvc,
		Excluded:      excluded,
	}, nil
}

// parseFlag accepts the flag spellings seen across export variants.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	}
	return false, fmt.Errorf("exclusion flag %q not recognized", s)
}
