package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gathering-portal/backend/internal/auth"
	"github.com/gathering-portal/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRoles is the key for the user's role list in gin context.
	ContextUserRoles = "user_roles"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		SetIdentity(c, claims.UserID, claims.Roles)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// SetIdentity stores the caller's id and roles in the gin context.
func SetIdentity(c *gin.Context, userID uuid.UUID, roles []string) {
	c.Set(ContextUserID, userID)
	c.Set(ContextUserRoles, roles)
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// UserRoles returns the authenticated caller's roles (nil when absent).
func UserRoles(c *gin.Context) []string {
	v, ok := c.Get(ContextUserRoles)
	if !ok {
		return nil
	}
	roles, _ := v.([]string)
	return roles
}
