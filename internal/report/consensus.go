package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// Agreement levels for three codes. Two of three agreeing is reported as the
// conventional 0.67 rather than 2/3 exact.
const (
	AgreementFull     = 1.0
	AgreementMajority = 0.67
	AgreementNone     = 0.0
)

// FieldConsensus is the vote outcome for one numeric coding field across an
// utterance's three codes. Consensus is nil when all three disagree. Average
// is the mean over the speech-category codes only, nil when none are speech.
type FieldConsensus struct {
	Consensus *int
	Agreement float64
	Average   *float64
}

// ConsensusRow is one fully-coded utterance with its metadata and the
// aggregated judgment of its three coders.
type ConsensusRow struct {
	UtteranceID     uint
	AssessmentID    string
	ParticipantID   string
	RecordingDate   time.Time
	Criterion       string
	StartSeconds    float64
	EndSeconds      float64
	DurationSeconds float64
	PitchMin        *float64
	PitchMax        *float64
	PitchMean       *float64
	PitchRange      *float64

	CategoryConsensus *string
	CategoryAgreement float64

	TotalSyllables        FieldConsensus
	CanonicalSyllables    FieldConsensus
	NonCanonicalSyllables FieldConsensus
	WordSyllables         FieldConsensus
	Words                 FieldConsensus
}

// Consensus builds the consensus report over every utterance whose three
// coding slots are all completed. Utterances still being coded are excluded;
// an utterance with completed slots but a wrong number of effective records
// is a consistency error.
func Consensus(db *gorm.DB) ([]ConsensusRow, error) {
	utteranceIDs, err := fullyCodedUtterances(db)
	if err != nil {
		return nil, err
	}
	if len(utteranceIDs) == 0 {
		return nil, nil
	}

	records, err := currentRecords(db, nil, nil)
	if err != nil {
		return nil, err
	}
	byUtterance := make(map[uint][]models.CodingRecord)
	for i := range records {
		byUtterance[records[i].UtteranceID] = append(byUtterance[records[i].UtteranceID], records[i])
	}

	meta, err := utteranceMeta(db, utteranceIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]ConsensusRow, 0, len(utteranceIDs))
	for _, uid := range utteranceIDs {
		codes := byUtterance[uid]
		if len(codes) != models.CoderSlots {
			return nil, fmt.Errorf("report: utterance %d has %d effective codes, want %d",
				uid, len(codes), models.CoderSlots)
		}

		row := meta[uid]
		row.CategoryConsensus, row.CategoryAgreement = voteStrings(categories(codes))
		row.TotalSyllables = voteField(codes, func(r *models.CodingRecord) int { return r.TotalSyllableCount })
		row.CanonicalSyllables = voteField(codes, func(r *models.CodingRecord) int { return r.CanonicalSyllableCount })
		row.NonCanonicalSyllables = voteField(codes, func(r *models.CodingRecord) int { return r.NonCanonicalSyllableCount })
		row.WordSyllables = voteField(codes, func(r *models.CodingRecord) int { return r.WordSyllableCount })
		row.Words = voteField(codes, func(r *models.CodingRecord) int { return r.WordCount })
		rows = append(rows, row)
	}
	return rows, nil
}

// fullyCodedUtterances lists utterance IDs whose every slot is completed, in
// ID order.
func fullyCodedUtterances(db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.WorkItem{}).
		Where("state = ?", models.StateCompleted).
		Group("utterance_id").
		Having("COUNT(*) = ?", models.CoderSlots).
		Order("utterance_id ASC").
		Pluck("utterance_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("report: find fully coded utterances: %w", err)
	}
	return ids, nil
}

func utteranceMeta(db *gorm.DB, ids []uint) (map[uint]ConsensusRow, error) {
	type metaRow struct {
		ID              uint
		StartSeconds    float64
		EndSeconds      float64
		DurationSeconds float64
		PitchMin        *float64
		PitchMax        *float64
		PitchMean       *float64
		PitchRange      *float64
		Criterion       string
		AssessmentID    string
		ParticipantID   string
		RecordingDate   time.Time
	}
	var metas []metaRow
	err := db.Model(&models.Utterance{}).
		Select("utterances.id, utterances.start_seconds, utterances.end_seconds, "+
			"utterances.duration_seconds, utterances.pitch_min, utterances.pitch_max, "+
			"utterances.pitch_mean, utterances.pitch_range, intervals.criterion, "+
			"recordings.assessment_id, recordings.participant_id, recordings.recording_date").
		Joins("JOIN intervals ON intervals.id = utterances.interval_id").
		Joins("JOIN recordings ON recordings.id = intervals.recording_id").
		Where("utterances.id IN ?", ids).
		Scan(&metas).Error
	if err != nil {
		return nil, fmt.Errorf("report: load utterance metadata: %w", err)
	}

	out := make(map[uint]ConsensusRow, len(metas))
	for _, m := range metas {
		out[m.ID] = ConsensusRow{
			UtteranceID:     m.ID,
			AssessmentID:    m.AssessmentID,
			ParticipantID:   m.ParticipantID,
			RecordingDate:   m.RecordingDate,
			Criterion:       m.Criterion,
			StartSeconds:    m.StartSeconds,
			EndSeconds:      m.EndSeconds,
			DurationSeconds: m.DurationSeconds,
			PitchMin:        m.PitchMin,
			PitchMax:        m.PitchMax,
			PitchMean:       m.PitchMean,
			PitchRange:      m.PitchRange,
		}
	}
	return out, nil
}

func categories(codes []models.CodingRecord) []string {
	out := make([]string, len(codes))
	for i := range codes {
		out[i] = codes[i].Category
	}
	return out
}

// speechCategory reports whether a category describes child speech; only
// speech codes enter the numeric averages.
func speechCategory(c string) bool {
	switch c {
	case models.CategoryCanonical, models.CategoryNonCanonical, models.CategoryWords:
		return true
	}
	return false
}

func voteField(codes []models.CodingRecord, get func(*models.CodingRecord) int) FieldConsensus {
	vals := make([]int, len(codes))
	for i := range codes {
		vals[i] = get(&codes[i])
	}
	fc := FieldConsensus{}
	fc.Consensus, fc.Agreement = voteInts(vals)

	var sum, n int
	for i := range codes {
		if speechCategory(codes[i].Category) {
			sum += vals[i]
			n++
		}
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		fc.Average = &avg
	}
	return fc
}

// voteInts resolves three values: all agree gives full agreement, two of
// three gives the majority value, otherwise no consensus.
func voteInts(vals []int) (*int, float64) {
	counts := make(map[int]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	switch len(counts) {
	case 1:
		v := vals[0]
		return &v, AgreementFull
	case 2:
		best, bestN := 0, 0
		for v, n := range counts {
			if n > bestN {
				best, bestN = v, n
			}
		}
		return &best, AgreementMajority
	default:
		return nil, AgreementNone
	}
}

func voteStrings(vals []string) (*string, float64) {
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	switch len(counts) {
	case 1:
		v := vals[0]
		return &v, AgreementFull
	case 2:
		keys := make([]string, 0, 2)
		for v := range counts {
			keys = append(keys, v)
		}
		sort.Strings(keys)
		best := keys[0]
		if counts[keys[1]] > counts[keys[0]] {
			best = keys[1]
		}
		return &best, AgreementMajority
	default:
		return nil, AgreementNone
	}
}
