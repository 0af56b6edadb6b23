package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guardianhq/guardian/internal/guardian"
)

const maxLogPageSize = 500

// AuditHandler exposes the audit trail to operators.
type AuditHandler struct {
	Guardian *guardian.Guardian
}

func NewAuditHandler(g *guardian.Guardian) *AuditHandler {
	return &AuditHandler{Guardian: g}
}

// List returns audit events, newest first, filtered by query parameters.
func (h *AuditHandler) List(c *gin.Context) {
	filter := guardian.LogFilter{
		EventType: c.Query("event_type"),
		Severity:  c.Query("severity"),
		UserID:    c.Query("user_id"),
		OrgID:     c.Query("org_id"),
		SourceIP:  c.Query("source_ip"),
	}

	if v := c.Query("blocked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blocked must be true or false"})
			return
		}
		filter.Blocked = &b
	}
	if v := c.Query("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = ts
	}

	limit := intQuery(c, "limit", 100)
	if limit <= 0 || limit > maxLogPageSize {
		limit = maxLogPageSize
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	// include what is still buffered so operators see fresh events
	if err := h.Guardian.Flush(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit store unavailable"})
		return
	}

	logs, err := h.Guardian.GetLogs(filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": logs, "count": len(logs)})
}

// Stats aggregates the trail over a period (default 24h).
func (h *AuditHandler) Stats(c *gin.Context) {
	period := 24 * time.Hour
	if v := c.Query("period"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be a positive duration"})
			return
		}
		period = d
	}

	if err := h.Guardian.Flush(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit store unavailable"})
		return
	}

	stats, err := h.Guardian.GetStats(period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate audit log"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
