package models

import "time"

// Utterance is one extracted target-child vocalization. The clip and pitch
// summary are derived data owned by the utterance; pitch columns stay NULL
// until the feature builder runs, and stay NULL if estimation fails.
type Utterance struct {
	ID              uint    `gorm:"primaryKey;autoIncrement"`
	IntervalID      uint    `gorm:"not null;uniqueIndex:idx_utterance_span"`
	StartSeconds    float64 `gorm:"not null;uniqueIndex:idx_utterance_span"`
	EndSeconds      float64 `gorm:"not null;uniqueIndex:idx_utterance_span"`
	DurationSeconds float64 `gorm:"not null"`
	ClipFileName    string  `gorm:"size:256"`
	ClipData        []byte  `gorm:"type:blob"`
	PitchMin        *float64
	PitchMax        *float64
	PitchMean       *float64
	PitchRange      *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Interval *Interval `gorm:"foreignKey:IntervalID"`
}

// HasPitch reports whether a pitch summary has been computed and stored.
func (u *Utterance) HasPitch() bool {
	return u.PitchMin != nil && u.PitchMax != nil && u.PitchMean != nil
}
