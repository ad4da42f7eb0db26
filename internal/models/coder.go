package models

import "time"

// Coder is a human annotator account.
type Coder struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:64;not null;uniqueIndex"`
	FirstName    string `gorm:"size:100"`
	LastName     string `gorm:"size:100"`
	Email        string `gorm:"size:256"`
	PasswordHash string `gorm:"size:128"`
	Active       bool   `gorm:"default:true"`
	IsAdmin      bool   `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CodingSession records one coder login for auditing. LastAccessedOn moves
// forward on every lease, heartbeat, and submission in the session.
type CodingSession struct {
	ID             uint `gorm:"primaryKey;autoIncrement"`
	CoderID        uint `gorm:"not null;index"`
	StartedOn      time.Time
	LastAccessedOn time.Time

	Coder *Coder `gorm:"foreignKey:CoderID"`
}
