package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndlab/vmc/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(&models.Recording{}, &models.Interval{}, &models.Utterance{},
		&models.WorkItem{}, &models.CodingRecord{}, &models.Coder{})
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func addCoder(t *testing.T, db *gorm.DB, username, first, last string) uint {
	t.Helper()
	c := models.Coder{Username: username, FirstName: first, LastName: last, Active: true}
	if err := db.Create(&c).Error; err != nil {
		t.Fatal(err)
	}
	return c.ID
}

func addUtterance(t *testing.T, db *gorm.DB, start float64) uint {
	t.Helper()
	var rec models.Recording
	if err := db.Where("assessment_id = ?", "9001_5").Find(&rec).Error; err != nil {
		t.Fatal(err)
	}
	if rec.ID == 0 {
		rec = models.Recording{
			AssessmentID:  "9001_5",
			RecordingType: models.RecordingTypeHome,
			ParticipantID: "C009",
			RecordingDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			BaseFileName:  "rec9001",
		}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatal(err)
		}
	}
	now := time.Now()
	iv := models.Interval{
		RecordingID: rec.ID, StartSeconds: start, EndSeconds: start + 300,
		ChildVocCount: 7, Selected: true,
		Criterion: models.CriterionHighVolubility, SelectedAt: &now,
	}
	if err := db.Create(&iv).Error; err != nil {
		t.Fatal(err)
	}
	mean := 300.0
	u := models.Utterance{
		IntervalID: iv.ID, StartSeconds: start + 1, EndSeconds: start + 2.5,
		DurationSeconds: 1.5, PitchMean: &mean,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u.ID
}

// code completes one slot of the utterance for the coder and writes the
// matching record at the given time.
func code(t *testing.T, db *gorm.DB, utteranceID, coderID uint, slot int, at time.Time,
	category string, total, canonical, wordSyl, words int) uint {
	t.Helper()
	done := at
	item := models.WorkItem{
		ID: uuid.NewString(), UtteranceID: utteranceID, Slot: slot,
		State: models.StateCompleted, CoderID: &coderID,
		LastActivity: at, CompletedAt: &done,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatal(err)
	}
	r := models.CodingRecord{
		WorkItemID: item.ID, UtteranceID: utteranceID, CoderID: coderID,
		Category: category, TotalSyllableCount: total,
		CanonicalSyllableCount: canonical, WordSyllableCount: wordSyl,
		NonCanonicalSyllableCount: total - canonical, WordCount: words,
		CreatedAt: at,
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatal(err)
	}
	return r.ID
}

func TestConsensus(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "Alice", "Adams")
	b := addCoder(t, db, "bob", "", "")
	c := addCoder(t, db, "carol", "", "")

	uid := addUtterance(t, db, 0)
	at := time.Now()
	// Totals agree 3/3; canonical 2/3; word counts disagree outright. The
	// crying code is excluded from speech averages.
	code(t, db, uid, a, 1, at, models.CategoryCanonical, 4, 2, 0, 1)
	code(t, db, uid, b, 2, at, models.CategoryCanonical, 4, 2, 0, 2)
	code(t, db, uid, c, 3, at, models.CategoryCrying, 4, 3, 0, 3)

	rows, err := Consensus(db)
	if err != nil {
		t.Fatalf("Consensus: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]

	if r.AssessmentID != "9001_5" || r.Criterion != models.CriterionHighVolubility {
		t.Errorf("metadata = %q %q", r.AssessmentID, r.Criterion)
	}
	if r.PitchMean == nil || *r.PitchMean != 300 {
		t.Error("pitch metadata missing")
	}

	if r.TotalSyllables.Consensus == nil || *r.TotalSyllables.Consensus != 4 {
		t.Errorf("total consensus = %v", r.TotalSyllables.Consensus)
	}
	if r.TotalSyllables.Agreement != AgreementFull {
		t.Errorf("total agreement = %v, want 1.0", r.TotalSyllables.Agreement)
	}

	if r.CanonicalSyllables.Consensus == nil || *r.CanonicalSyllables.Consensus != 2 {
		t.Errorf("canonical consensus = %v", r.CanonicalSyllables.Consensus)
	}
	if r.CanonicalSyllables.Agreement != AgreementMajority {
		t.Errorf("canonical agreement = %v, want 0.67", r.CanonicalSyllables.Agreement)
	}

	if r.Words.Consensus != nil || r.Words.Agreement != AgreementNone {
		t.Errorf("word count consensus = %v agreement %v, want none",
			r.Words.Consensus, r.Words.Agreement)
	}

	// Speech average over the two canonical codes only: (2+2)/2.
	if r.CanonicalSyllables.Average == nil || *r.CanonicalSyllables.Average != 2 {
		t.Errorf("canonical average = %v, want 2", r.CanonicalSyllables.Average)
	}
	if r.Words.Average == nil || math.Abs(*r.Words.Average-1.5) > 1e-9 {
		t.Errorf("word average = %v, want 1.5", r.Words.Average)
	}

	if r.CategoryConsensus == nil || *r.CategoryConsensus != models.CategoryCanonical {
		t.Errorf("category consensus = %v", r.CategoryConsensus)
	}
	if r.CategoryAgreement != AgreementMajority {
		t.Errorf("category agreement = %v", r.CategoryAgreement)
	}
}

func TestConsensus_SkipsPartiallyCoded(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "", "")
	b := addCoder(t, db, "bob", "", "")

	uid := addUtterance(t, db, 0)
	at := time.Now()
	code(t, db, uid, a, 1, at, models.CategoryWords, 3, 1, 2, 1)
	code(t, db, uid, b, 2, at, models.CategoryWords, 3, 1, 2, 1)
	// Slot 3 still open.

	rows, err := Consensus(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0 while a slot is open", len(rows))
	}
}

func TestConsensus_CorrectionSupersedes(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "", "")
	b := addCoder(t, db, "bob", "", "")
	c := addCoder(t, db, "carol", "", "")

	uid := addUtterance(t, db, 0)
	at := time.Now()
	code(t, db, uid, a, 1, at, models.CategoryWords, 5, 1, 3, 2)
	code(t, db, uid, b, 2, at, models.CategoryWords, 5, 1, 3, 2)
	orig := code(t, db, uid, c, 3, at, models.CategoryWords, 9, 1, 3, 2)

	// Carol corrects her total from 9 to 5; the vote must use the correction.
	fix := models.CodingRecord{
		WorkItemID: "w-fix", UtteranceID: uid, CoderID: c,
		Category: models.CategoryWords, TotalSyllableCount: 5,
		CanonicalSyllableCount: 1, WordSyllableCount: 3,
		NonCanonicalSyllableCount: 4, WordCount: 2,
		SupersedesID: &orig, CreatedAt: at.Add(time.Minute),
	}
	if err := db.Create(&fix).Error; err != nil {
		t.Fatal(err)
	}

	rows, err := Consensus(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].TotalSyllables.Agreement != AgreementFull {
		t.Errorf("agreement = %v after correction, want 1.0", rows[0].TotalSyllables.Agreement)
	}
}

func TestCodingRate_SessionSplit(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "Alice", "Adams")

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	// Session one: three codes over 6 minutes. An 18-minute pause, then
	// session two: three codes over 2 minutes.
	times := []time.Duration{0, 5 * time.Minute, 6 * time.Minute,
		24 * time.Minute, 25 * time.Minute, 26 * time.Minute}
	for i, d := range times {
		uid := addUtterance(t, db, float64(i)*300)
		code(t, db, uid, a, 1, base.Add(d), models.CategoryWords, 3, 1, 2, 1)
	}

	rows, err := CodingRate(db, nil, nil)
	if err != nil {
		t.Fatalf("CodingRate: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.Coder != "Alice Adams" || r.Codes != 6 || r.Sessions != 2 {
		t.Errorf("row = %+v, want Alice Adams, 6 codes, 2 sessions", r)
	}
	if math.Abs(r.MinPerHour-30) > 1e-9 {
		t.Errorf("MinPerHour = %v, want 30", r.MinPerHour)
	}
	if math.Abs(r.MaxPerHour-90) > 1e-9 {
		t.Errorf("MaxPerHour = %v, want 90", r.MaxPerHour)
	}
	if math.Abs(r.AvgPerHour-60) > 1e-9 {
		t.Errorf("AvgPerHour = %v, want 60", r.AvgPerHour)
	}
}

func TestCodingRate_DateWindow(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "", "")

	in := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	out := in.AddDate(0, 0, -7)
	for i, at := range []time.Time{in, in.Add(time.Minute), out} {
		uid := addUtterance(t, db, float64(i)*300)
		code(t, db, uid, a, 1, at, models.CategoryWords, 3, 1, 2, 1)
	}

	from := in.Add(-time.Hour)
	rows, err := CodingRate(db, &from, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Codes != 2 {
		t.Fatalf("rows = %+v, want one coder with 2 codes in window", rows)
	}
}

func TestProgress(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "Alice", "Adams")
	b := addCoder(t, db, "bob", "", "")

	day1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	plan := []struct {
		coder uint
		at    time.Time
	}{
		{a, day1}, {a, day1.Add(time.Hour)}, {a, day2}, {b, day2},
	}
	for i, p := range plan {
		uid := addUtterance(t, db, float64(i)*300)
		code(t, db, uid, p.coder, 1, p.at, models.CategoryWords, 3, 1, 2, 1)
	}

	rows, err := Progress(db, nil, nil)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	want := []ProgressRow{
		{Coder: "Alice Adams", Day: "2026-04-01", Codes: 2},
		{Coder: "Alice Adams", Day: "2026-04-02", Codes: 1},
		{Coder: "bob", Day: "2026-04-02", Codes: 1},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestStatus(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "", "")

	uid := addUtterance(t, db, 0)
	at := time.Now()
	code(t, db, uid, a, 1, at, models.CategoryWords, 3, 1, 2, 1)
	for slot := 2; slot <= 3; slot++ {
		item := models.WorkItem{
			ID: uuid.NewString(), UtteranceID: uid, Slot: slot,
			State: models.StateAvailable, LastActivity: at,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatal(err)
		}
	}

	st, err := Status(db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Available != 2 || st.Leased != 0 || st.Completed != 1 {
		t.Errorf("status = %+v", st)
	}
	if len(st.Coders) != 1 || st.Coders[0].Completed != 1 {
		t.Errorf("coders = %+v", st.Coders)
	}
}

func TestWriteConsensusCSV(t *testing.T) {
	db := testDB(t)
	a := addCoder(t, db, "alice", "", "")
	b := addCoder(t, db, "bob", "", "")
	c := addCoder(t, db, "carol", "", "")

	uid := addUtterance(t, db, 0)
	at := time.Now()
	code(t, db, uid, a, 1, at, models.CategoryWords, 1, 0, 1, 1)
	code(t, db, uid, b, 2, at, models.CategoryWords, 2, 0, 2, 1)
	code(t, db, uid, c, 3, at, models.CategoryWords, 3, 0, 3, 1)

	rows, err := Consensus(db)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteConsensusCSV(&buf, rows); err != nil {
		t.Fatalf("WriteConsensusCSV: %v", err)
	}
	parsed, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("records = %d, want header + 1", len(parsed))
	}
	header, row := parsed[0], parsed[1]
	if len(header) != len(row) {
		t.Errorf("header %d columns, row %d", len(header), len(row))
	}

	// Totals disagree outright: consensus cell empty, agreement zero.
	find := func(col string) string {
		for i, h := range header {
			if h == col {
				return row[i]
			}
		}
		t.Fatalf("column %q missing", col)
		return ""
	}
	if got := find("TotalSyllableConsensus"); got != "" {
		t.Errorf("TotalSyllableConsensus = %q, want empty", got)
	}
	if got := find("TotalSyllableAgreement"); got != "0" {
		t.Errorf("TotalSyllableAgreement = %q, want 0", got)
	}
	if got := find("TotalSyllableAverage"); got != "2" {
		t.Errorf("TotalSyllableAverage = %q, want 2", got)
	}
	if got := find("CategoryConsensus"); got != models.CategoryWords {
		t.Errorf("CategoryConsensus = %q", got)
	}
}

func TestWriteRateCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []CoderRate{{Coder: "Alice Adams", Codes: 6, Sessions: 2,
		MinPerHour: 30, MaxPerHour: 90, AvgPerHour: 60}}
	if err := WriteRateCSV(&buf, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Alice Adams,6,2,30,90,60") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVoteInts(t *testing.T) {
	cases := []struct {
		vals      []int
		want      *int
		agreement float64
	}{
		{[]int{4, 4, 4}, intPtr(4), AgreementFull},
		{[]int{4, 4, 7}, intPtr(4), AgreementMajority},
		{[]int{7, 4, 4}, intPtr(4), AgreementMajority},
		{[]int{1, 2, 3}, nil, AgreementNone},
	}
	for _, c := range cases {
		got, agreement := voteInts(c.vals)
		name := fmt.Sprintf("%v", c.vals)
		if agreement != c.agreement {
			t.Errorf("%s: agreement = %v, want %v", name, agreement, c.agreement)
		}
		if (got == nil) != (c.want == nil) {
			t.Errorf("%s: consensus = %v, want %v", name, got, c.want)
			continue
		}
		if got != nil && *got != *c.want {
			t.Errorf("%s: consensus = %d, want %d", name, *got, *c.want)
		}
	}
}

func intPtr(i int) *int { return &i }
