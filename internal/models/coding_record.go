package models

import "time"

// Vocal-maturity categories a coder can assign.
const (
	CategoryCanonical    = "canonical-syllables"
	CategoryNonCanonical = "non-canonical-syllables"
	CategoryWords        = "words"
	CategoryLaughing     = "laughing"
	CategoryCrying       = "crying"
	CategoryDontMark     = "dont-mark"
)

// Categories lists every valid vocal-maturity category.
var Categories = []string{
	CategoryCanonical,
	CategoryNonCanonical,
	CategoryWords,
	CategoryLaughing,
	CategoryCrying,
	CategoryDontMark,
}

// CodingRecord is one submitted annotation. Rows are append-only: a correction
// is a new row pointing at the record it supersedes, never an in-place edit.
// NonCanonicalSyllableCount is derived on submission (total - canonical).
type CodingRecord struct {
	ID                        uint   `gorm:"primaryKey;autoIncrement"`
	WorkItemID                string `gorm:"size:36;not null;index"`
	UtteranceID               uint   `gorm:"not null;index"`
	CoderID                   uint   `gorm:"not null;index"`
	Category                  string `gorm:"size:32;not null"`
	TotalSyllableCount        int    `gorm:"default:0"`
	CanonicalSyllableCount    int    `gorm:"default:0"`
	WordSyllableCount         int    `gorm:"default:0"`
	NonCanonicalSyllableCount int    `gorm:"default:0"`
	WordCount                 int    `gorm:"default:0"`
	Unusable                  bool   `gorm:"default:false"`
	Comments                  string `gorm:"type:text"`
	SupersedesID              *uint
	CreatedAt                 time.Time

	Coder *Coder `gorm:"foreignKey:CoderID"`
}

// ValidCategory reports whether s is a known vocal-maturity category.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}
