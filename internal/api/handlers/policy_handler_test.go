package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianhq/guardian/internal/guardian"
)

func policyRouter(t *testing.T) (*gin.Engine, *guardian.Guardian) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := NewTestGuardian(t)
	h := NewPolicyHandler(g)

	r := gin.New()
	r.POST("/policies", h.Upsert)
	r.POST("/policies/reload", h.Reload)
	r.POST("/patterns", h.AddPattern)
	return r, g
}

func TestPolicyUpsert(t *testing.T) {
	r, g := policyRouter(t)

	w := postJSON(t, r, "/policies", PolicyRequest{
		TenantID:          "org-1",
		RequestsPerMinute: 10,
		AllowedAgents:     "support-bot",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// the policy is live without a reload
	_, err := g.ValidateInput("hi", "rogue-agent", "org-1", "")
	assert.ErrorIs(t, err, guardian.ErrAgentNotAllowed)
}

func TestPolicyUpsert_InvalidPattern(t *testing.T) {
	r, _ := policyRouter(t)

	w := postJSON(t, r, "/policies", PolicyRequest{
		TenantID:        "org-1",
		BlockedPatterns: "([broken",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPolicyUpsert_MissingTenant(t *testing.T) {
	r, _ := policyRouter(t)

	w := postJSON(t, r, "/policies", PolicyRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPolicyReload(t *testing.T) {
	r, _ := policyRouter(t)

	w := postJSON(t, r, "/policies/reload", struct{}{})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddPattern(t *testing.T) {
	r, g := policyRouter(t)

	w := postJSON(t, r, "/patterns", PatternRequest{
		Expr:     `(?i)\bcontraband\b`,
		Category: "custom",
		Severity: "warning",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	d := g.EvaluateRequest(guardian.RequestInput{
		Identifier: "1.2.3.4", Endpoint: "/api/orders", SourceIP: "1.2.3.4",
		Body: "shipping Contraband tonight",
	})
	assert.False(t, d.Allowed)
}

func TestAddPattern_InvalidRegex(t *testing.T) {
	r, _ := policyRouter(t)

	w := postJSON(t, r, "/patterns", PatternRequest{
		Expr:     "([broken",
		Category: "custom",
		Severity: "warning",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddPattern_UnknownCategory(t *testing.T) {
	r, _ := policyRouter(t)

	w := postJSON(t, r, "/patterns", PatternRequest{
		Expr:     "ok",
		Category: "nonsense",
		Severity: "warning",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
