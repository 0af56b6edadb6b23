package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func resolveWith(t *testing.T, trustedProxies int, remoteAddr string, headers map[string]string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var got string
	r := gin.New()
	r.Use(ResolveClientIP(trustedProxies))
	r.GET("/test", func(c *gin.Context) {
		got = ClientIP(c)
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return got
}

func TestClientIP_NoProxyIgnoresForwardedFor(t *testing.T) {
	got := resolveWith(t, 0, "10.1.1.1:5000", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
	})
	assert.Equal(t, "10.1.1.1", got)
}

func TestClientIP_SingleTrustedProxy(t *testing.T) {
	got := resolveWith(t, 1, "10.1.1.1:5000", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
	})
	assert.Equal(t, "1.2.3.4", got)
}

func TestClientIP_MultipleHops(t *testing.T) {
	// client -> untrusted proxy -> two trusted hops
	got := resolveWith(t, 2, "10.1.1.1:5000", map[string]string{
		"X-Forwarded-For": "1.2.3.4, 8.8.8.8, 10.0.0.2",
	})
	assert.Equal(t, "1.2.3.4", got)
}

func TestClientIP_SpoofedHeaderFallsBack(t *testing.T) {
	got := resolveWith(t, 1, "10.1.1.1:5000", map[string]string{
		"X-Forwarded-For": "not-an-ip",
	})
	assert.Equal(t, "10.1.1.1", got)
}

func TestClientIP_XRealIPFallback(t *testing.T) {
	got := resolveWith(t, 1, "10.1.1.1:5000", map[string]string{
		"X-Real-IP": "2.3.4.5",
	})
	assert.Equal(t, "2.3.4.5", got)
}
