package db

import (
	"testing"

	"github.com/ndlab/vmc/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{
		User: "vmc", Password: "pw", Host: "10.0.0.5", Port: 3307, Database: "vmc_ndd",
	})
	want := "vmc:pw@tcp(10.0.0.5:3307)/vmc_ndd?parseTime=true"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 7 {
		t.Errorf("len(AllModels()) = %d, want 7", got)
	}
}

func TestAutoMigrate_SQLite(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	for _, table := range []string{"recordings", "intervals", "utterances", "work_items", "coding_records", "coders", "coding_sessions"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %q missing after migration", table)
		}
	}
}
