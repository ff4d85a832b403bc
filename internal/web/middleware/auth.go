package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"techhome/internal/logging"
)

// RequireAuth validates the bearer token and stores the caller's user ID and
// username in the request context.
func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		userID, err := m.auth.ValidateAccessToken(c, token)
		if err != nil {
			clog := logging.Component("web")
			clog.Debug().Err(err).Msg("authentication failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		var username string
		if err := m.pgClient.QueryRow(c, "SELECT username FROM users WHERE id = $1", userID).Scan(&username); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("username", username)
		c.Next()
	}
}
