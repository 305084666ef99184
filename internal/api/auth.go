package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireUser extracts the caller identity from the X-User-Id header. The
// header is asserted, not verified: it is trusted to come from the
// previously-authenticated front-end session.
func (app *App) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-Id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing X-User-Id header"})
			return
		}
		userID = strings.TrimSpace(userID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid user ID"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequireDeploymentSecret guards the status callback path with the shared
// secret presented by the CI system. An unset secret rejects everything.
func (app *App) RequireDeploymentSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Deployment-Secret")
		if app.Cfg.DeploymentSecret == "" || secret != app.Cfg.DeploymentSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid deployment secret"})
			return
		}
		c.Next()
	}
}

func (app *App) userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
