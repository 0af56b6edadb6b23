package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/guardianhq/guardian/internal/config"
)

const testAdminToken = "test-admin-token"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminToken), bcrypt.MinCost)
	require.NoError(t, err)
	return config.Config{
		Environment:    "test",
		HTTPPort:       "0",
		AdminTokenHash: string(hash),
		RateLimit: config.RateLimitConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			BlockDuration:     5 * time.Minute,
			SweepInterval:     time.Minute,
		},
		Lockout: config.LockoutConfig{
			MaxAttempts:      5,
			AttemptWindow:    15 * time.Minute,
			BaseLockDuration: 5 * time.Minute,
			MaxLockDuration:  24 * time.Hour,
			IPMaxAttempts:    20,
			IPAttemptWindow:  time.Hour,
			IPBlockDuration:  time.Hour,
		},
		Audit: config.AuditConfig{
			BufferCap:     10000,
			FlushInterval: 5 * time.Second,
			BatchSize:     200,
		},
		MaxInputLength:  10000,
		MaxOutputLength: 50000,
	}
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	router := gin.New()
	_, err = Register(router, db, testConfig(t), nil)
	require.NoError(t, err)
	return router
}

func TestRegister_Health(t *testing.T) {
	router := testRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRegister_Metrics(t *testing.T) {
	router := testRouter(t)

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guardian_evaluations_total")
}

func TestRegister_EvaluateEndToEnd(t *testing.T) {
	router := testRouter(t)

	body, _ := json.Marshal(map[string]string{
		"endpoint":  "/api/orders",
		"method":    "POST",
		"source_ip": "1.2.3.4",
		"body":      "'; DROP TABLE users--",
	})
	req, _ := http.NewRequest("POST", "/api/v1/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:999"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"allowed":false`)
	assert.Contains(t, w.Body.String(), "request blocked")
}

func TestRegister_AdminRequiresToken(t *testing.T) {
	router := testRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/audit/logs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req, _ = http.NewRequest("GET", "/api/v1/audit/logs", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	req.RemoteAddr = "10.0.0.1:999"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegister_SecurityHeadersPresent(t *testing.T) {
	router := testRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
