package mw

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Auth enforces the static bearer token on protected routes. Both sides
// are hashed before comparing, keeping the comparison constant-time for
// tokens of any length. Missing, malformed and wrong tokens all get the
// same response.
func Auth(apiToken string) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(apiToken))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}

		got := sha256.Sum256([]byte(token))
		if !hmac.Equal(got[:], expected[:]) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		c.Next()
	}
}
