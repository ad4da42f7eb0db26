package db

import (
	"fmt"

	"github.com/ndlab/vmc/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Recording{},
		&models.Interval{},
		&models.Utterance{},
		&models.WorkItem{},
		&models.CodingRecord{},
		&models.Coder{},
		&models.CodingSession{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
