package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "clientIP"

// ResolveClientIP determines the real client address once per request and
// stores it in the context. X-Forwarded-For is only consulted when
// trustedProxies > 0: the header is client-controlled, so without a trusted
// reverse proxy in front of the service it must be ignored.
//
// X-Forwarded-For format is "client, proxy1, proxy2, ..." with the rightmost
// entries appended by the proxies we control. With N trusted hops the client
// address sits at index len(ips)-N-1.
func ResolveClientIP(trustedProxies int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, resolveIP(c.Request, trustedProxies))
		c.Next()
	}
}

// ClientIP returns the address resolved by ResolveClientIP, falling back to
// gin's own resolution when the middleware is not installed.
func ClientIP(c *gin.Context) string {
	if v, ok := c.Get(clientIPKey); ok {
		if ip, ok := v.(string); ok && ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}

func resolveIP(r *http.Request, trustedProxies int) string {
	if trustedProxies > 0 {
		if ip := ipFromForwardedFor(r.Header.Get("X-Forwarded-For"), trustedProxies); ip != "" {
			return ip
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipFromForwardedFor(xff string, trustedProxies int) string {
	if xff == "" {
		return ""
	}

	ips := strings.Split(xff, ",")
	idx := len(ips) - trustedProxies - 1
	if idx < 0 {
		idx = 0
	}

	ip := strings.TrimSpace(ips[idx])
	if net.ParseIP(ip) != nil {
		return ip
	}
	return ""
}
