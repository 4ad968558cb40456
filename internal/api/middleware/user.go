package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/logger"
)

const (
	userIDKey       = "user_id"
	maxUserIDLength = 128
)

// validUserID accepts ids usable as a single storage path segment.
func validUserID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > maxUserIDLength {
		return false
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// RequireUser rejects requests without a usable owner identity. The
// identity is set by the upstream auth gateway in header.
func RequireUser(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(header))
		if !validUserID(userID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Não autenticado",
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// UserID returns the identity stored by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
