package middleware

import (
	"strings"

	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/utils"
	"github.com/featureboard/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *gin.Context, claims *utils.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextEmail, claims.Email)
	c.Set(ContextRole, claims.Role)
}

// AuthRequired is a middleware that checks for a valid JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and lets
// anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := utils.ParseToken(token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// AdminRequired lets the request through when p grants action to the caller.
func AdminRequired(p policy.Policy, action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch policy.Authorize(p, CurrentIdentity(c), action, policy.Resource{}) {
		case nil:
			c.Next()
		case policy.ErrUnauthorized:
			response.Unauthorized(c, "authentication required")
			c.Abort()
		default:
			response.Forbidden(c, "admin access required")
			c.Abort()
		}
	}
}

// CurrentIdentity returns the authenticated caller or nil.
func CurrentIdentity(c *gin.Context) *policy.Identity {
	id := GetUserID(c)
	if id == "" {
		return nil
	}
	return &policy.Identity{ID: id, Email: GetEmail(c), Role: GetRole(c)}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
