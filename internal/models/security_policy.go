package models

import (
	"strings"
	"time"
)

// SecurityPolicy holds per-tenant overrides for Guardian thresholds. A tenant
// without a row falls back to the global defaults from config.
type SecurityPolicy struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	UUID              string    `json:"uuid" gorm:"uniqueIndex"`
	TenantID          string    `json:"tenant_id" gorm:"uniqueIndex"`
	RequestsPerMinute int       `json:"requests_per_minute"`
	RequestsPerHour   int       `json:"requests_per_hour"`
	MaxInputLength    int       `json:"max_input_length"`
	MaxOutputLength   int       `json:"max_output_length"`
	AllowedAgents     string    `json:"allowed_agents" gorm:"type:text"`  // comma-separated, empty allows all
	BlockedPatterns   string    `json:"blocked_patterns" gorm:"type:text"` // newline-separated regexes
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AgentAllowed reports whether the named agent may be driven under this
// policy. An empty allowlist permits every agent.
func (p *SecurityPolicy) AgentAllowed(agent string) bool {
	if strings.TrimSpace(p.AllowedAgents) == "" {
		return true
	}
	for _, a := range strings.Split(p.AllowedAgents, ",") {
		if strings.EqualFold(strings.TrimSpace(a), agent) {
			return true
		}
	}
	return false
}

// BlockedPatternList splits the stored pattern block into individual
// expressions, skipping blank lines.
func (p *SecurityPolicy) BlockedPatternList() []string {
	var out []string
	for _, line := range strings.Split(p.BlockedPatterns, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
