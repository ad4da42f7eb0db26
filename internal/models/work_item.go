package models

import "time"

// WorkItem states.
const (
	StateAvailable = "available"
	StateLeased    = "leased"
	StateCompleted = "completed"
)

// CoderSlots is the number of independent annotations required per utterance.
const CoderSlots = 3

// WorkItem is one outstanding coding slot for an Utterance. Exactly CoderSlots
// rows exist per fully-populated utterance, enforced by the (utterance, slot)
// unique index. State transitions are single conditional updates:
// available -> leased -> completed, with leased -> available only via the
// reclaim sweep or an explicit abandon.
type WorkItem struct {
	ID           string `gorm:"primaryKey;size:36"`
	UtteranceID  uint   `gorm:"not null;uniqueIndex:idx_work_item_slot"`
	Slot         int    `gorm:"not null;uniqueIndex:idx_work_item_slot"`
	State        string `gorm:"size:16;default:available;index"`
	CoderID      *uint  `gorm:"index"`
	LastActivity time.Time `gorm:"index"`
	CreatedAt    time.Time
	CompletedAt  *time.Time

	Utterance *Utterance `gorm:"foreignKey:UtteranceID"`
}
