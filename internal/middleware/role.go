package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/atriumhq/console/pkg/response"
)

// RequireGlobalAdmin allows only users whose profile carries the global admin flag.
func RequireGlobalAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := c.Get(ContextIsGlobalAdmin)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if isAdmin, _ := val.(bool); !isAdmin {
			response.Forbidden(c, "requires global admin")
			c.Abort()
			return
		}
		c.Next()
	}
}
