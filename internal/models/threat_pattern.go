package models

import (
	"time"
)

// ThreatPatternRecord persists operator-added detection rules so they survive
// restarts. Built-in rules are compiled in and never stored.
type ThreatPatternRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Expr      string    `json:"expr" gorm:"type:text"`
	Category  string    `json:"category" gorm:"index"`
	Severity  string    `json:"severity"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
