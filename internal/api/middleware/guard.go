package middleware

import (
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/guardianhq/guardian/internal/guardian"
)

// Guard runs the inbound pipeline against the service's own routes: the same
// rate limits, IP blocks and pattern rules the API applies on behalf of its
// callers also protect the API itself. The request body is left untouched;
// only the path, query and user agent are scanned.
func Guard(g *guardian.Guardian) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c)
		userID, orgID := CallerID(c)

		decision := g.EvaluateRequest(guardian.RequestInput{
			Identifier: ip,
			Endpoint:   c.FullPath(),
			Method:     c.Request.Method,
			SourceIP:   ip,
			UserAgent:  c.Request.UserAgent(),
			Query:      decodedQuery(c.Request.URL.RawQuery),
			UserID:     userID,
			OrgID:      orgID,
		})
		if !decision.Allowed {
			GetRequestLogger(c).WithFields(map[string]interface{}{
				"client":   ip,
				"path":     SanitizePath(c.Request.URL.Path),
				"event_id": decision.EventID,
			}).Warn("request blocked")
			c.AbortWithStatusJSON(decision.Status, gin.H{"error": decision.Reason})
			return
		}
		c.Next()
	}
}

// decodedQuery unescapes the raw query so percent-encoded payloads are
// scanned in the form the upstream application will see them.
func decodedQuery(raw string) string {
	if decoded, err := url.QueryUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
