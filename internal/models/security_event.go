package models

import (
	"time"
)

// SecurityEvent records a single Guardian decision so it can be audited and
// surfaced through the admin API. Rows are append-only once flushed.
type SecurityEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	EventType string    `json:"event_type" gorm:"index"` // request, blocked, rate_limit, login, password_change, data_access
	Severity  string    `json:"severity" gorm:"index"`   // info, warning, error, critical
	UserID    string    `json:"user_id,omitempty" gorm:"index"`
	OrgID     string    `json:"org_id,omitempty" gorm:"index"`
	SourceIP  string    `json:"source_ip" gorm:"index"`
	UserAgent string    `json:"user_agent"`
	Endpoint  string    `json:"endpoint"`
	Method    string    `json:"method"`
	Payload   string    `json:"payload" gorm:"type:text"` // sanitized excerpt, never raw credentials
	Status    int       `json:"status"`
	Blocked   bool      `json:"blocked" gorm:"index"`
	Reason    string    `json:"reason"`                    // detailed reason, admin-only
	Metadata  string    `json:"metadata" gorm:"type:text"` // JSON-encoded extra fields
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
