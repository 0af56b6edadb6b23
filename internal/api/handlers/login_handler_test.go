package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardianhq/guardian/internal/guardian"
)

func loginRouter(t *testing.T) (*gin.Engine, *guardian.Guardian) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := NewTestGuardian(t)
	h := NewLoginHandler(g)

	r := gin.New()
	r.POST("/login/failure", h.Failure)
	r.POST("/login/success", h.Success)
	r.GET("/login/status", h.Status)
	return r, g
}

func TestLoginFailure_CountsDown(t *testing.T) {
	r, _ := loginRouter(t)

	w := postJSON(t, r, "/login/failure", LoginEventRequest{Account: "a@x.com", SourceIP: "1.2.3.4"})
	require.Equal(t, http.StatusOK, w.Code)

	var res guardian.AttemptResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 4, res.AttemptsLeft)
	assert.False(t, res.JustLocked)
}

func TestLoginFailure_LocksAtThreshold(t *testing.T) {
	r, _ := loginRouter(t)

	for i := 0; i < 4; i++ {
		w := postJSON(t, r, "/login/failure", LoginEventRequest{Account: "a@x.com", SourceIP: "1.2.3.4"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	// the locking attempt answers 423 with the lock state
	w := postJSON(t, r, "/login/failure", LoginEventRequest{Account: "a@x.com", SourceIP: "1.2.3.4"})
	require.Equal(t, http.StatusLocked, w.Code)
	var res guardian.AttemptResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.JustLocked)

	req, _ := http.NewRequest("GET", "/login/status?account=a@x.com", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var st guardian.LockStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Locked)
}

func TestLoginFailure_BlockedIPRefused(t *testing.T) {
	r, g := loginRouter(t)

	// exhaust the per-address aggregate across many accounts
	for i := 0; i < 20; i++ {
		account := "victim" + string(rune('a'+i)) + "@x.com"
		g.RecordLoginFailure(account, "6.6.6.6")
	}

	w := postJSON(t, r, "/login/failure", LoginEventRequest{Account: "fresh@x.com", SourceIP: "6.6.6.6"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginSuccess_Resets(t *testing.T) {
	r, g := loginRouter(t)

	postJSON(t, r, "/login/failure", LoginEventRequest{Account: "b@x.com", SourceIP: "1.2.3.4"})
	w := postJSON(t, r, "/login/success", LoginEventRequest{Account: "b@x.com", SourceIP: "1.2.3.4"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.False(t, g.IsLocked("b@x.com").Locked)
}

func TestLoginStatus_UnknownAccountSameShape(t *testing.T) {
	r, _ := loginRouter(t)

	req, _ := http.NewRequest("GET", "/login/status?account=ghost@x.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var st guardian.LockStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Locked)
}

func TestLoginStatus_MissingAccount(t *testing.T) {
	r, _ := loginRouter(t)

	req, _ := http.NewRequest("GET", "/login/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginFailure_MissingAccount(t *testing.T) {
	r, _ := loginRouter(t)

	w := postJSON(t, r, "/login/failure", LoginEventRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
