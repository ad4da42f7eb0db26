package extractor

import (
	"io"
	"testing"
	"time"

	"github.com/ndlab/vmc/internal/lena"
	"github.com/ndlab/vmc/internal/models"
	"github.com/sirupsen/logrus"
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
	if err := db.AutoMigrate(&models.Recording{}, &models.Interval{}, &models.Utterance{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// seedSelected creates a recording with one selected window per (start, end)
// pair and one unselected window after them.
func seedSelected(t *testing.T, db *gorm.DB, windows [][2]float64) uint {
	t.Helper()
	rec := models.Recording{
		AssessmentID:  "5811_1",
		RecordingType: models.RecordingTypeHome,
		ParticipantID: "C002",
		RecordingDate: time.Date(2022, 5, 2, 0, 0, 0, 0, time.UTC),
		BaseFileName:  "20220502_073000_5811",
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create recording: %v", err)
	}
	now := time.Now()
	for _, w := range windows {
		iv := models.Interval{
			RecordingID:  rec.ID,
			StartSeconds: w[0],
			EndSeconds:   w[1],
			Selected:     true,
			Criterion:    models.CriterionHighVolubility,
			SelectedAt:   &now,
		}
		if err := db.Create(&iv).Error; err != nil {
			t.Fatalf("create interval: %v", err)
		}
	}
	last := windows[len(windows)-1][1]
	unselected := models.Interval{RecordingID: rec.ID, StartSeconds: last, EndSeconds: last + models.IntervalSeconds}
	if err := db.Create(&unselected).Error; err != nil {
		t.Fatalf("create unselected interval: %v", err)
	}
	return rec.ID
}

func TestExtract_TargetChildOnly(t *testing.T) {
	db := testDB(t)
	recID := seedSelected(t, db, [][2]float64{{0, 300}})

	// One coded event at 70s, one faint-child event in the same window.
	events := []lena.Event{
		{Speaker: lena.SpeakerChildNear, StartSeconds: 70, EndSeconds: 72},
		{Speaker: lena.SpeakerChildFaint, StartSeconds: 120, EndSeconds: 123},
		{Speaker: "FAN", StartSeconds: 130, EndSeconds: 131},
	}

	res, err := Extract(db, recID, events, testLogger())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1", res.Created)
	}
	if res.NonTarget != 2 {
		t.Errorf("NonTarget = %d, want 2", res.NonTarget)
	}

	var utts []models.Utterance
	db.Find(&utts)
	if len(utts) != 1 {
		t.Fatalf("len(utterances) = %d, want 1", len(utts))
	}
	if utts[0].StartSeconds != 70 || utts[0].EndSeconds != 72 {
		t.Errorf("utterance span = (%v, %v), want (70, 72)", utts[0].StartSeconds, utts[0].EndSeconds)
	}
	if utts[0].DurationSeconds != 2 {
		t.Errorf("duration = %v, want 2", utts[0].DurationSeconds)
	}
}

func TestExtract_BoundaryBelongsToOnsetWindow(t *testing.T) {
	db := testDB(t)
	recID := seedSelected(t, db, [][2]float64{{0, 300}})

	events := []lena.Event{
		// Onset inside the window, end past its boundary: included in full.
		{Speaker: lena.SpeakerChildNear, StartSeconds: 299, EndSeconds: 302.5},
		// Onset exactly on the closing boundary: outside.
		{Speaker: lena.SpeakerChildNear, StartSeconds: 300, EndSeconds: 303},
	}

	res, err := Extract(db, recID, events, testLogger())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1", res.Created)
	}
	if res.OutsideAny != 1 {
		t.Errorf("OutsideAny = %d, want 1", res.OutsideAny)
	}

	var u models.Utterance
	if err := db.First(&u).Error; err != nil {
		t.Fatalf("load utterance: %v", err)
	}
	if u.EndSeconds != 302.5 {
		t.Errorf("EndSeconds = %v, want the full 302.5", u.EndSeconds)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	db := testDB(t)
	recID := seedSelected(t, db, [][2]float64{{0, 300}, {600, 900}})

	events := []lena.Event{
		{Speaker: lena.SpeakerChildNear, StartSeconds: 10, EndSeconds: 11.5},
		{Speaker: lena.SpeakerChildNear, StartSeconds: 650, EndSeconds: 652},
		{Speaker: lena.SpeakerChildNear, StartSeconds: 400, EndSeconds: 401}, // unselected window
	}

	first, err := Extract(db, recID, events, testLogger())
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	if first.Created != 2 || first.OutsideAny != 1 {
		t.Fatalf("first run = %+v, want 2 created, 1 outside", first)
	}

	second, err := Extract(db, recID, events, testLogger())
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("second run created %d utterances", second.Created)
	}
	if second.Duplicates != 2 {
		t.Errorf("second run duplicates = %d, want 2", second.Duplicates)
	}

	var n int64
	db.Model(&models.Utterance{}).Count(&n)
	if n != 2 {
		t.Errorf("utterance count = %d after re-run, want 2", n)
	}
}

func TestExtract_NoSelectedIntervals(t *testing.T) {
	db := testDB(t)
	rec := models.Recording{
		AssessmentID:  "9999_1",
		RecordingType: models.RecordingTypeHome,
		ParticipantID: "C003",
		RecordingDate: time.Now(),
		BaseFileName:  "x",
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatal(err)
	}

	_, err := Extract(db, rec.ID, nil, testLogger())
	if err == nil {
		t.Fatal("expected error for recording without selected intervals")
	}
}
