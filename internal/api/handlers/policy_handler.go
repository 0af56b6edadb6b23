package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianhq/guardian/internal/guardian"
	"github.com/guardianhq/guardian/internal/models"
)

// PolicyHandler manages tenant policies and custom detection patterns.
type PolicyHandler struct {
	Guardian *guardian.Guardian
}

func NewPolicyHandler(g *guardian.Guardian) *PolicyHandler {
	return &PolicyHandler{Guardian: g}
}

type PolicyRequest struct {
	TenantID          string `json:"tenant_id" binding:"required"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	RequestsPerHour   int    `json:"requests_per_hour"`
	MaxInputLength    int    `json:"max_input_length"`
	MaxOutputLength   int    `json:"max_output_length"`
	AllowedAgents     string `json:"allowed_agents"`
	BlockedPatterns   string `json:"blocked_patterns"`
}

// Upsert creates or replaces a tenant policy. Pattern expressions are
// validated before anything is persisted.
func (h *PolicyHandler) Upsert(c *gin.Context) {
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy := models.SecurityPolicy{
		TenantID:          req.TenantID,
		RequestsPerMinute: req.RequestsPerMinute,
		RequestsPerHour:   req.RequestsPerHour,
		MaxInputLength:    req.MaxInputLength,
		MaxOutputLength:   req.MaxOutputLength,
		AllowedAgents:     req.AllowedAgents,
		BlockedPatterns:   req.BlockedPatterns,
	}

	if err := h.Guardian.SetPolicy(&policy); err != nil {
		if errors.Is(err, guardian.ErrInvalidPattern) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pattern expression"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save policy"})
		return
	}

	c.JSON(http.StatusOK, policy)
}

// Reload rebuilds the in-memory rule and policy snapshots from storage.
func (h *PolicyHandler) Reload(c *gin.Context) {
	if err := h.Guardian.ReloadPolicies(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reloaded": true})
}

type PatternRequest struct {
	Expr     string `json:"expr" binding:"required"`
	Category string `json:"category" binding:"required"`
	Severity string `json:"severity" binding:"required"`
}

// AddPattern registers a custom detection rule, active immediately and
// persisted for future starts.
func (h *PolicyHandler) AddPattern(c *gin.Context) {
	var req PatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Guardian.AddPattern(req.Expr, guardian.Category(req.Category), guardian.Severity(req.Severity))
	if err != nil {
		if errors.Is(err, guardian.ErrInvalidPattern) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pattern"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save pattern"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"added": true})
}
