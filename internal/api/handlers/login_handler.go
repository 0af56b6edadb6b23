package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/guardianhq/guardian/internal/api/middleware"
	"github.com/guardianhq/guardian/internal/guardian"
)

// LoginHandler lets authentication services report login outcomes so the
// lockout tracker sees every attempt regardless of where the credential check
// happens.
type LoginHandler struct {
	Guardian *guardian.Guardian
}

func NewLoginHandler(g *guardian.Guardian) *LoginHandler {
	return &LoginHandler{Guardian: g}
}

type LoginEventRequest struct {
	Account  string `json:"account" binding:"required"`
	SourceIP string `json:"source_ip"`
}

// Failure records a failed attempt. The response carries the lock state but
// deliberately no per-account detail beyond what the caller already knows.
func (h *LoginHandler) Failure(c *gin.Context) {
	var req LoginEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := req.SourceIP
	if ip == "" {
		ip = middleware.ClientIP(c)
	}

	res, err := h.Guardian.RecordLoginFailure(req.Account, ip)
	if err != nil {
		var le *guardian.LockedError
		if errors.As(err, &le) {
			c.JSON(http.StatusLocked, res)
			return
		}
		if errors.Is(err, guardian.ErrIPBlocked) {
			c.JSON(http.StatusForbidden, gin.H{"error": "source address blocked"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Success records a successful login, resetting the failure counter.
func (h *LoginHandler) Success(c *gin.Context) {
	var req LoginEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := req.SourceIP
	if ip == "" {
		ip = middleware.ClientIP(c)
	}

	h.Guardian.RecordLoginSuccess(req.Account, ip)
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

// Status answers whether an account is currently locked. The same answer
// shape comes back for known and unknown accounts.
func (h *LoginHandler) Status(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account parameter required"})
		return
	}

	c.JSON(http.StatusOK, h.Guardian.IsLocked(account))
}
