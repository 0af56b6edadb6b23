package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards the admin surface with a single bearer token whose bcrypt
// hash is held in configuration. An empty hash disables the surface entirely
// rather than leaving it open.
func AdminAuth(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "route not found"})
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}

// CallerClaims extracts user and org identifiers from an optional caller JWT
// so audit events can be attributed. The request proceeds either way: a
// missing or invalid token only means anonymous attribution.
func CallerClaims(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			c.Next()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Set("user_id", sub)
		}
		if org, ok := claims["org_id"].(string); ok && org != "" {
			c.Set("org_id", org)
		}
		c.Next()
	}
}

// CallerID returns the attributed user and org ids, empty when anonymous.
func CallerID(c *gin.Context) (userID, orgID string) {
	return c.GetString("user_id"), c.GetString("org_id")
}
