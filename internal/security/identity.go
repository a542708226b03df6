package security

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyUserID is the gin context key for the resolved user ID.
const ContextKeyUserID = "userID"

// IdentityMiddleware resolves the caller's user id from the X-User-ID header.
// The chat store never authenticates users; identity is supplied by the
// process that owns login. Requests without an identity are rejected so
// membership checks downstream always have a subject.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the resolved user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
