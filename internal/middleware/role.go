package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gathering-portal/backend/internal/auth"
	"github.com/gathering-portal/backend/pkg/response"
)

// RequireRole returns a middleware that allows callers holding at least one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return RequireAnyRole(auth.NewRoleSet(roles...))
}

// RequireAnyRole is RequireRole for a prebuilt role set.
func RequireAnyRole(allowed auth.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !allowed.Intersects(UserRoles(c)) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
