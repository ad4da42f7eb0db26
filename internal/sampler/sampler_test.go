package sampler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with all required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Recording{}, &models.Interval{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedRecording(t *testing.T, db *gorm.DB, counts []int, excluded map[int]bool) uint {
	t.Helper()
	rec := models.Recording{
		AssessmentID:  "5651_5",
		RecordingType: models.RecordingTypeHome,
		ParticipantID: "C001",
		RecordingDate: time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC),
		BaseFileName:  "20220314_080000_5651",
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create recording: %v", err)
	}
	for i, c := range counts {
		iv := models.Interval{
			RecordingID:   rec.ID,
			StartSeconds:  float64(i) * models.IntervalSeconds,
			EndSeconds:    float64(i+1) * models.IntervalSeconds,
			ChildVocCount: c,
			Excluded:      excluded[i],
		}
		if err := db.Create(&iv).Error; err != nil {
			t.Fatalf("create interval %d: %v", i, err)
		}
	}
	return rec.ID
}

func selectedByCriterion(t *testing.T, db *gorm.DB, recID uint, criterion string) []models.Interval {
	t.Helper()
	var ivs []models.Interval
	if err := db.Where("recording_id = ? AND selected = ? AND criterion = ?", recID, true, criterion).
		Order("start_seconds ASC").Find(&ivs).Error; err != nil {
		t.Fatalf("query selected: %v", err)
	}
	return ivs
}

func TestSelectSegments_FullSample(t *testing.T) {
	db := testDB(t)

	counts := make([]int, 40)
	for i := range counts {
		counts[i] = i
	}
	recID := seedRecording(t, db, counts, nil)

	res, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("SelectSegments: %v", err)
	}
	if res.HighVolubility != 10 || res.RandomSupplement != 20 {
		t.Fatalf("result = %+v, want 10 HV + 20 RS", res)
	}
	if res.UnderSampled {
		t.Error("40 eligible intervals flagged under-sampled")
	}

	hv := selectedByCriterion(t, db, recID, models.CriterionHighVolubility)
	if len(hv) != 10 {
		t.Fatalf("len(hv) = %d, want 10", len(hv))
	}
	// Counts are 0..39, so HV must be exactly counts 30..39.
	for _, iv := range hv {
		if iv.ChildVocCount < 30 {
			t.Errorf("interval with count %d selected high-volubility", iv.ChildVocCount)
		}
	}

	rs := selectedByCriterion(t, db, recID, models.CriterionRandomSupplement)
	if len(rs) != 20 {
		t.Fatalf("len(rs) = %d, want 20", len(rs))
	}
	for _, iv := range rs {
		if iv.ChildVocCount >= 30 {
			t.Errorf("high-volubility interval (count %d) drew random-supplement", iv.ChildVocCount)
		}
	}
}

func TestSelectSegments_ExcludedNeverSelected(t *testing.T) {
	db := testDB(t)

	counts := make([]int, 40)
	excluded := map[int]bool{}
	for i := range counts {
		counts[i] = i
		if i >= 35 {
			excluded[i] = true // the five loudest intervals are naps
		}
	}
	recID := seedRecording(t, db, counts, excluded)

	if _, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(7))}); err != nil {
		t.Fatalf("SelectSegments: %v", err)
	}

	var n int64
	db.Model(&models.Interval{}).
		Where("recording_id = ? AND selected = ? AND excluded = ?", recID, true, true).
		Count(&n)
	if n != 0 {
		t.Errorf("%d excluded intervals were selected", n)
	}

	hv := selectedByCriterion(t, db, recID, models.CriterionHighVolubility)
	for _, iv := range hv {
		if iv.ChildVocCount >= 35 {
			t.Errorf("excluded-range count %d selected", iv.ChildVocCount)
		}
	}
}

// Scenario from the study protocol: 12 eligible intervals with counts
// 5,9,3,1,8,2,7,4,6,0,10,11 give the top ten counts as high-volubility and
// the two quietest as the supplement, with the under-sampled flag set.
func TestSelectSegments_UnderSampled(t *testing.T) {
	db := testDB(t)
	counts := []int{5, 9, 3, 1, 8, 2, 7, 4, 6, 0, 10, 11}
	recID := seedRecording(t, db, counts, nil)

	res, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("SelectSegments: %v", err)
	}
	if !res.UnderSampled {
		t.Error("12 eligible intervals not flagged under-sampled")
	}
	if res.Total() != 12 {
		t.Fatalf("total selected = %d, want 12", res.Total())
	}

	hv := selectedByCriterion(t, db, recID, models.CriterionHighVolubility)
	if len(hv) != 10 {
		t.Fatalf("len(hv) = %d, want 10", len(hv))
	}
	hvCounts := map[int]bool{}
	for _, iv := range hv {
		hvCounts[iv.ChildVocCount] = true
	}
	for _, want := range []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2} {
		if !hvCounts[want] {
			t.Errorf("count %d missing from high-volubility set", want)
		}
	}

	rs := selectedByCriterion(t, db, recID, models.CriterionRandomSupplement)
	if len(rs) != 2 {
		t.Fatalf("len(rs) = %d, want 2", len(rs))
	}
	for _, iv := range rs {
		if iv.ChildVocCount != 0 && iv.ChildVocCount != 1 {
			t.Errorf("supplement has count %d, want 0 or 1", iv.ChildVocCount)
		}
	}

	var rec models.Recording
	db.First(&rec, recID)
	if !rec.UnderSampled {
		t.Error("recording under_sampled flag not persisted")
	}
}

func TestSelectSegments_EmptyEligibleSet(t *testing.T) {
	db := testDB(t)
	counts := []int{4, 8, 2}
	recID := seedRecording(t, db, counts, map[int]bool{0: true, 1: true, 2: true})

	res, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("SelectSegments: %v", err)
	}
	if !res.Unusable {
		t.Error("empty eligible set not reported unusable")
	}
	if res.Total() != 0 {
		t.Errorf("total = %d, want 0", res.Total())
	}

	var rec models.Recording
	db.First(&rec, recID)
	if !rec.UnusableForSampling {
		t.Error("recording unusable_for_sampling flag not persisted")
	}
}

func TestSelectSegments_Idempotent(t *testing.T) {
	db := testDB(t)
	counts := make([]int, 35)
	for i := range counts {
		counts[i] = i
	}
	recID := seedRecording(t, db, counts, nil)

	if _, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(1))}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := SelectSegments(db, recID, Options{Rand: rand.New(rand.NewSource(2))})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !res.AlreadySelected {
		t.Error("second run did not report existing selection")
	}

	var n int64
	db.Model(&models.Interval{}).Where("recording_id = ? AND selected = ?", recID, true).Count(&n)
	if n != 30 {
		t.Errorf("selected count = %d after re-run, want 30", n)
	}
}

func TestMakePlan_DeterministicUnderSeed(t *testing.T) {
	eligible := make([]models.Interval, 50)
	for i := range eligible {
		eligible[i] = models.Interval{ID: uint(i + 1), ChildVocCount: i % 17}
	}

	pick := func(seed int64) map[int]bool {
		p := makePlan(eligible, Options{
			HighVolubility:   10,
			RandomSupplement: 20,
			Rand:             rand.New(rand.NewSource(seed)),
		})
		got := map[int]bool{}
		for _, i := range p.randomSupplement {
			got[i] = true
		}
		return got
	}

	a, b := pick(42), pick(42)
	if len(a) != 20 || len(b) != 20 {
		t.Fatalf("draw sizes = %d, %d, want 20", len(a), len(b))
	}
	for i := range a {
		if !b[i] {
			t.Fatalf("same seed drew different supplements")
		}
	}
}

func TestMakePlan_StableTieBreak(t *testing.T) {
	// All counts equal: the ranked ten must be the first ten chronologically.
	eligible := make([]models.Interval, 40)
	for i := range eligible {
		eligible[i] = models.Interval{ID: uint(i + 1), ChildVocCount: 5}
	}
	p := makePlan(eligible, Options{
		HighVolubility:   10,
		RandomSupplement: 20,
		Rand:             rand.New(rand.NewSource(3)),
	})
	for rank, idx := range p.highVolubility {
		if idx != rank {
			t.Fatalf("tie-break not chronological: rank %d got index %d", rank, idx)
		}
	}
}
