package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianhq/guardian/internal/api/middleware"
	"github.com/guardianhq/guardian/internal/guardian"
)

// EvaluateHandler exposes the core protection pipeline to callers: full
// request evaluation plus the input/output validation paths for model-bound
// text.
type EvaluateHandler struct {
	Guardian *guardian.Guardian
}

func NewEvaluateHandler(g *guardian.Guardian) *EvaluateHandler {
	return &EvaluateHandler{Guardian: g}
}

type EvaluateRequest struct {
	Endpoint  string `json:"endpoint" binding:"required"`
	Method    string `json:"method"`
	SourceIP  string `json:"source_ip"`
	UserAgent string `json:"user_agent"`
	Body      string `json:"body"`
	Query     string `json:"query"`
	TenantID  string `json:"tenant_id"`
	Account   string `json:"account"`
}

// Evaluate runs the inbound pipeline on behalf of the caller. When the caller
// does not supply a source address the direct client address is used, so the
// endpoint works both for sidecar-style callers forwarding real traffic and
// for direct probes.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := req.SourceIP
	if ip == "" {
		ip = middleware.ClientIP(c)
	}
	userID, orgID := middleware.CallerID(c)
	if orgID == "" {
		orgID = req.TenantID
	}

	decision := h.Guardian.EvaluateRequest(guardian.RequestInput{
		Identifier: ip,
		Endpoint:   req.Endpoint,
		Method:     req.Method,
		SourceIP:   ip,
		UserAgent:  req.UserAgent,
		Body:       req.Body,
		Query:      req.Query,
		TenantID:   req.TenantID,
		UserID:     userID,
		OrgID:      orgID,
		Account:    req.Account,
	})

	c.JSON(http.StatusOK, decision)
}

type ValidateInputRequest struct {
	Text      string `json:"text" binding:"required"`
	AgentName string `json:"agent_name"`
	TenantID  string `json:"tenant_id"`
}

// ValidateInput screens text bound for a model. A rejected payload answers
// 422 with an opaque reason so the response cannot be used as an oracle for
// the rule set.
func (h *EvaluateHandler) ValidateInput(c *gin.Context) {
	var req ValidateInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, orgID := middleware.CallerID(c)
	if orgID == "" {
		orgID = req.TenantID
	}

	eventID, err := h.Guardian.ValidateInput(req.Text, req.AgentName, orgID, userID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"valid":          false,
			"error":          "input rejected",
			"audit_event_id": eventID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "audit_event_id": eventID})
}

type ValidateOutputRequest struct {
	Text      string `json:"text" binding:"required"`
	AgentName string `json:"agent_name"`
	TenantID  string `json:"tenant_id"`
	Format    string `json:"format"`
}

// ValidateOutput screens model output before it reaches the end user and
// returns the sanitized text on success.
func (h *EvaluateHandler) ValidateOutput(c *gin.Context) {
	var req ValidateOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := guardian.OutputFormat(req.Format)
	switch format {
	case "", guardian.FormatNone:
		format = guardian.FormatNone
	case guardian.FormatSQL, guardian.FormatJSON:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown output format"})
		return
	}

	_, orgID := middleware.CallerID(c)
	if orgID == "" {
		orgID = req.TenantID
	}

	sanitized, err := h.Guardian.ValidateOutput(req.Text, req.AgentName, orgID, format)
	if err != nil {
		var te *guardian.ThreatError
		if errors.As(err, &te) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "error": "output rejected"})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "text": sanitized})
}

// RateStatus reports the remaining budget for an identifier/endpoint pair.
func (h *EvaluateHandler) RateStatus(c *gin.Context) {
	identifier := c.Query("identifier")
	if identifier == "" {
		identifier = middleware.ClientIP(c)
	}
	endpoint := c.DefaultQuery("endpoint", "*")

	c.JSON(http.StatusOK, h.Guardian.RateStatus(identifier, endpoint))
}
