package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/techvara/crm/internal/auth"
	"github.com/techvara/crm/internal/models"
	"github.com/techvara/crm/pkg/errors"
	"github.com/techvara/crm/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxRoleKey   = "userRole"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxRoleKey, claims.Role)

		c.Next()
	}
}

// RequireRole gates a route group on the authenticated user's role. Admins
// pass every gate; workers only pass worker gates.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(CtxRoleKey)
		if !exists {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		current, ok := value.(models.UserRole)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if current != role && current != models.RoleAdmin {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUserID returns the authenticated user id stored by Auth.
func CurrentUserID(c *gin.Context) string {
	value, exists := c.Get(CtxUserIDKey)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}

// CurrentRole returns the authenticated user's role stored by Auth.
func CurrentRole(c *gin.Context) models.UserRole {
	value, exists := c.Get(CtxRoleKey)
	if !exists {
		return ""
	}
	role, _ := value.(models.UserRole)
	return role
}
