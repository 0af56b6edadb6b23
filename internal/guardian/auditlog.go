package guardian

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/config"
	"github.com/guardianhq/guardian/internal/logger"
	"github.com/guardianhq/guardian/internal/metrics"
	"github.com/guardianhq/guardian/internal/models"
	"github.com/guardianhq/guardian/internal/util"
)

// Event types written to the audit trail.
const (
	EventRequest        = "request"
	EventBlocked        = "blocked"
	EventRateLimit      = "rate_limit"
	EventLogin          = "login"
	EventPasswordChange = "password_change"
	EventDataAccess     = "data_access"
)

// payloadExcerptMax bounds stored request/response excerpts.
const payloadExcerptMax = 500

// Event is one security decision before it is flushed to storage.
type Event struct {
	EventType string
	Severity  Severity
	UserID    string
	OrgID     string
	SourceIP  string
	UserAgent string
	Endpoint  string
	Method    string
	Payload   string
	Status    int
	Blocked   bool
	Reason    string
	Metadata  map[string]string
}

// LogFilter narrows GetLogs results. Zero values match everything.
type LogFilter struct {
	EventType string
	Severity  string
	UserID    string
	OrgID     string
	SourceIP  string
	Blocked   *bool
	Since     time.Time
	Until     time.Time
}

// AuditStats summarizes the trail over a period.
type AuditStats struct {
	Total        int64            `json:"total"`
	Blocked      int64            `json:"blocked"`
	BlockRatePct float64          `json:"block_rate_pct"`
	BySeverity   map[string]int64 `json:"by_severity"`
}

// alertThreshold is the number of consecutive flush failures after which an
// operator alert is raised.
const alertThreshold = 3

// AuditLog buffers events in memory and flushes them to the database in
// batches. Log never touches I/O; the caller's request path only pays for an
// append under a mutex. Many producers append concurrently, one background
// tick flushes.
type AuditLog struct {
	db *gorm.DB

	mu  sync.Mutex
	buf []models.SecurityEvent

	cap      int
	batch    int
	failures int
	alert    func(msg string)
}

// NewAuditLog creates a buffered audit log. alert may be nil.
func NewAuditLog(db *gorm.DB, cfg config.AuditConfig, alert func(string)) *AuditLog {
	if alert == nil {
		alert = func(string) {}
	}
	return &AuditLog{
		db:    db,
		cap:   cfg.BufferCap,
		batch: cfg.BatchSize,
		alert: alert,
	}
}

// Log sanitizes and appends one event, returning its id. When the buffer is
// full the oldest events are evicted: losing old audit entries is preferred
// over blocking or failing the caller's security decision.
func (a *AuditLog) Log(e Event) string {
	row := models.SecurityEvent{
		UUID:      uuid.NewString(),
		EventType: e.EventType,
		Severity:  string(e.Severity),
		UserID:    e.UserID,
		OrgID:     e.OrgID,
		SourceIP:  e.SourceIP,
		UserAgent: util.Excerpt(e.UserAgent, 200),
		Endpoint:  util.Excerpt(e.Endpoint, 200),
		Method:    e.Method,
		Payload:   util.Excerpt(e.Payload, payloadExcerptMax),
		Status:    e.Status,
		Blocked:   e.Blocked,
		Reason:    util.Excerpt(e.Reason, 200),
		CreatedAt: time.Now(),
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = string(b)
		}
	}

	a.mu.Lock()
	if a.cap > 0 && len(a.buf) >= a.cap {
		drop := len(a.buf) - a.cap + 1
		a.buf = a.buf[drop:]
		metrics.IncAuditDropped(drop)
	}
	a.buf = append(a.buf, row)
	depth := len(a.buf)
	a.mu.Unlock()

	metrics.SetAuditBufferSize(depth)
	return row.UUID
}

// Flush persists buffered events in batches. Safe to call concurrently with
// Log. On failure the batch is restored to the front of the buffer and
// retried on the next tick; the error never propagates to request paths.
func (a *AuditLog) Flush() error {
	a.mu.Lock()
	if len(a.buf) == 0 {
		a.mu.Unlock()
		return nil
	}
	pending := a.buf
	a.buf = nil
	a.mu.Unlock()

	err := a.db.CreateInBatches(pending, a.batch).Error
	if err != nil {
		a.mu.Lock()
		a.buf = append(pending, a.buf...)
		if a.cap > 0 && len(a.buf) > a.cap {
			drop := len(a.buf) - a.cap
			a.buf = a.buf[drop:]
			metrics.IncAuditDropped(drop)
		}
		a.failures++
		failures := a.failures
		a.mu.Unlock()

		metrics.IncAuditFlushFailure()
		logger.WithComponent("audit").WithField("pending", len(pending)).
			WithError(err).Error("audit flush failed")
		if failures == alertThreshold {
			a.alert(fmt.Sprintf("audit persistence failing: %d consecutive flush errors, last: %v", failures, err))
		}
		return fmt.Errorf("flush audit events: %w", err)
	}

	a.mu.Lock()
	a.failures = 0
	depth := len(a.buf)
	a.mu.Unlock()
	metrics.SetAuditBufferSize(depth)
	return nil
}

// Pending returns the number of buffered, unflushed events.
func (a *AuditLog) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// GetLogs returns persisted events newest-first with pagination.
func (a *AuditLog) GetLogs(f LogFilter, limit, offset int) ([]models.SecurityEvent, error) {
	q := a.db.Model(&models.SecurityEvent{}).Order("created_at desc, id desc")

	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.OrgID != "" {
		q = q.Where("org_id = ?", f.OrgID)
	}
	if f.SourceIP != "" {
		q = q.Where("source_ip = ?", f.SourceIP)
	}
	if f.Blocked != nil {
		q = q.Where("blocked = ?", *f.Blocked)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at <= ?", f.Until)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var out []models.SecurityEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return out, nil
}

// GetStats aggregates totals, block counts and a per-severity breakdown over
// the trailing period. Period zero covers the whole trail.
func (a *AuditLog) GetStats(period time.Duration) (AuditStats, error) {
	base := func() *gorm.DB {
		q := a.db.Model(&models.SecurityEvent{})
		if period > 0 {
			q = q.Where("created_at >= ?", time.Now().Add(-period))
		}
		return q
	}

	stats := AuditStats{BySeverity: make(map[string]int64)}
	if err := base().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count audit events: %w", err)
	}
	if err := base().Where("blocked = ?", true).Count(&stats.Blocked).Error; err != nil {
		return stats, fmt.Errorf("count blocked events: %w", err)
	}
	if stats.Total > 0 {
		stats.BlockRatePct = float64(stats.Blocked) / float64(stats.Total) * 100
	}

	rows := []struct {
		Severity string
		N        int64
	}{}
	if err := base().Select("severity, count(*) as n").Group("severity").Scan(&rows).Error; err != nil {
		return stats, fmt.Errorf("aggregate severities: %w", err)
	}
	for _, r := range rows {
		stats.BySeverity[r.Severity] = r.N
	}
	return stats, nil
}
