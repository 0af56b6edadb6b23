package handlers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/guardian"
	"github.com/guardianhq/guardian/internal/models"
)

// OpenTestDB creates a SQLite in-memory DB unique per test and applies
// a busy timeout and WAL journal mode to reduce SQLITE locking during parallel tests.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.SecurityEvent{}, &models.SecurityPolicy{}, &models.ThreatPatternRecord{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// NewTestGuardian builds a Guardian over an isolated test DB with the stock
// defaults.
func NewTestGuardian(t *testing.T) *guardian.Guardian {
	t.Helper()
	cfg := config.Config{
		Environment: "test",
		RateLimit: config.RateLimitConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			BlockDuration:     5 * time.Minute,
			SweepInterval:     time.Minute,
		},
		Lockout: config.LockoutConfig{
			MaxAttempts:      5,
			AttemptWindow:    15 * time.Minute,
			BaseLockDuration: 5 * time.Minute,
			MaxLockDuration:  24 * time.Hour,
			IPMaxAttempts:    20,
			IPAttemptWindow:  time.Hour,
			IPBlockDuration:  time.Hour,
		},
		Audit: config.AuditConfig{
			BufferCap:     10000,
			FlushInterval: 5 * time.Second,
			BatchSize:     200,
		},
		MaxInputLength:  10000,
		MaxOutputLength: 50000,
	}
	g, err := guardian.New(OpenTestDB(t), cfg, nil)
	if err != nil {
		t.Fatalf("failed to build guardian: %v", err)
	}
	return g
}
