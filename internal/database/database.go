package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open bootstraps a SQLite database using the provided filesystem path.
// A busy timeout and WAL journal mode are applied so the audit flusher and
// concurrent admin queries do not trip SQLITE_BUSY.
func Open(dbPath string) (*gorm.DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn = dsn + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return db, nil
}
