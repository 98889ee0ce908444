package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware gates administrative endpoints behind the static
// admin token. Startup refuses to run without the token configured, so an
// empty expected value here means a wiring bug, not an open door.
func AdminAuthMiddleware(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Admin token not configured",
			})
			c.Abort()
			return
		}

		presented := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if presented == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(strings.TrimSpace(adminToken))) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
