package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteProgressCSV writes the daily progress report.
func WriteProgressCSV(w io.Writer, rows []ProgressRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Coder", "Day", "Codes"}); err != nil {
		return fmt.Errorf("report: write progress header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Coder, r.Day, strconv.Itoa(r.Codes)}); err != nil {
			return fmt.Errorf("report: write progress row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRateCSV writes the coding-rate report.
func WriteRateCSV(w io.Writer, rows []CoderRate) error {
	cw := csv.NewWriter(w)
	header := []string{"Coder", "Codes", "Sessions", "MinPerHour", "MaxPerHour", "AvgPerHour"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write rate header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Coder,
			strconv.Itoa(r.Codes),
			strconv.Itoa(r.Sessions),
			formatFloat(r.MinPerHour),
			formatFloat(r.MaxPerHour),
			formatFloat(r.AvgPerHour),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write rate row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteConsensusCSV writes the full consensus export. Empty cells mark
// missing consensus, averages, and pitch values.
func WriteConsensusCSV(w io.Writer, rows []ConsensusRow) error {
	cw := csv.NewWriter(w)
	header := []string{
		"UtteranceID", "AssessmentID", "ParticipantID", "RecordingDate",
		"Criterion", "StartTime", "EndTime", "Duration",
		"MinPitch", "MaxPitch", "AveragePitch", "PitchRange",
		"CategoryConsensus", "CategoryAgreement",
		"TotalSyllableConsensus", "TotalSyllableAgreement", "TotalSyllableAverage",
		"CanonicalSyllableConsensus", "CanonicalSyllableAgreement", "CanonicalSyllableAverage",
		"NonCanonicalSyllableConsensus", "NonCanonicalSyllableAgreement", "NonCanonicalSyllableAverage",
		"WordSyllableConsensus", "WordSyllableAgreement", "WordSyllableAverage",
		"WordCountConsensus", "WordCountAgreement", "WordCountAverage",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write consensus header: %w", err)
	}

	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(uint64(r.UtteranceID), 10),
			r.AssessmentID,
			r.ParticipantID,
			r.RecordingDate.Format("2006-01-02"),
			r.Criterion,
			formatFloat(r.StartSeconds),
			formatFloat(r.EndSeconds),
			formatFloat(r.DurationSeconds),
			formatFloatPtr(r.PitchMin),
			formatFloatPtr(r.PitchMax),
			formatFloatPtr(r.PitchMean),
			formatFloatPtr(r.PitchRange),
			formatStringPtr(r.CategoryConsensus),
			formatFloat(r.CategoryAgreement),
		}
		for _, fc := range []FieldConsensus{
			r.TotalSyllables, r.CanonicalSyllables, r.NonCanonicalSyllables,
			r.WordSyllables, r.Words,
		} {
			rec = append(rec, formatIntPtr(fc.Consensus), formatFloat(fc.Agreement),
				formatFloatPtr(fc.Average))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write consensus row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
