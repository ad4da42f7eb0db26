package models

import "time"

// Recording types.
const (
	RecordingTypeHome   = "home"
	RecordingTypeClinic = "clinic"
)

// Recording is one daylong audio capture for a participant.
// Immutable after ingestion except for the validity and sampling flags.
type Recording struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement"`
	AssessmentID        string    `gorm:"size:25;not null;uniqueIndex:idx_recording_assessment"`
	RecordingType       string    `gorm:"size:16;default:home;uniqueIndex:idx_recording_assessment"`
	ParticipantID       string    `gorm:"size:20;not null;index"`
	RecordingDate       time.Time `gorm:"not null"`
	BaseFileName        string    `gorm:"size:100;not null"`
	IsValid             bool      `gorm:"default:true"`
	UnderSampled        bool      `gorm:"default:false"`
	UnusableForSampling bool      `gorm:"default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Intervals []Interval `gorm:"foreignKey:RecordingID"`
}
