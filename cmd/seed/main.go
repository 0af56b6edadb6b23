package main

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/database"
	"github.com/guardianhq/guardian/internal/models"
)

// Seeds a local database with a demo tenant policy and a few custom patterns
// so a fresh checkout has something to look at.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.SecurityEvent{},
		&models.SecurityPolicy{},
		&models.ThreatPatternRecord{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	fmt.Println("✓ Database migrated successfully")

	policies := []models.SecurityPolicy{
		{
			UUID:              uuid.NewString(),
			TenantID:          "demo",
			RequestsPerMinute: 30,
			RequestsPerHour:   500,
			MaxInputLength:    4000,
			AllowedAgents:     "support-bot, sql-agent",
			BlockedPatterns:   `(?i)\bproject-hermes\b`,
		},
		{
			UUID:              uuid.NewString(),
			TenantID:          "demo-unlimited",
			RequestsPerMinute: 600,
			RequestsPerHour:   10000,
		},
	}
	for _, p := range policies {
		if err := db.Where(models.SecurityPolicy{TenantID: p.TenantID}).
			Assign(p).FirstOrCreate(&p).Error; err != nil {
			log.Fatal("Failed to seed policy:", err)
		}
	}
	fmt.Printf("✓ Seeded %d tenant policies\n", len(policies))

	patterns := []models.ThreatPatternRecord{
		{UUID: uuid.NewString(), Expr: `(?i)\binternal-codename\b`, Category: "custom", Severity: "warning", Active: true},
		{UUID: uuid.NewString(), Expr: `(?i)\bxp_cmdshell\b`, Category: "sql_injection", Severity: "critical", Active: true},
	}
	for _, p := range patterns {
		if err := db.Where(models.ThreatPatternRecord{Expr: p.Expr}).
			Assign(p).FirstOrCreate(&p).Error; err != nil {
			log.Fatal("Failed to seed pattern:", err)
		}
	}
	fmt.Printf("✓ Seeded %d custom patterns\n", len(patterns))
}
