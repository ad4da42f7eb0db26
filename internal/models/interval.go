package models

import "time"

// Selection criteria for promoted intervals.
const (
	CriterionHighVolubility   = "HV"
	CriterionRandomSupplement = "RS"
)

// IntervalSeconds is the fixed length of one interval of a recording's timeline.
const IntervalSeconds = 300.0

// Interval is a fixed five-minute slice of a Recording's timeline. A selected
// interval (a "segment") is the same row with the promotion fields set; it is
// never copied.
type Interval struct {
	ID            uint    `gorm:"primaryKey;autoIncrement"`
	RecordingID   uint    `gorm:"not null;uniqueIndex:idx_interval_window"`
	StartSeconds  float64 `gorm:"not null;uniqueIndex:idx_interval_window"`
	EndSeconds    float64 `gorm:"not null"`
	ChildVocCount int     `gorm:"default:0"`
	Excluded      bool    `gorm:"default:false"`
	Selected      bool    `gorm:"default:false;index"`
	Criterion     string  `gorm:"size:2"`
	SelectedAt    *time.Time
	CreatedAt     time.Time

	Recording  *Recording  `gorm:"foreignKey:RecordingID"`
	Utterances []Utterance `gorm:"foreignKey:IntervalID"`
}

// Contains reports whether an onset at t falls inside this interval's window.
// The boundary belongs to the window containing the onset, so the end is open.
func (iv *Interval) Contains(t float64) bool {
	return iv.StartSeconds <= t && t < iv.EndSeconds
}
