package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/auth"
	"filetrack-backend/internal/shared/server/respond"
)

const (
	userIDKey     = "userId"
	usernameKey   = "username"
	roleKey       = "role"
	permissionKey = "permission"
)

// Auth validates bearer JWTs and stores identity in context. Paths in
// public skip authentication.
func Auth(tokens *auth.Tokens, public ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := open[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(usernameKey, claims.Username)
		c.Set(roleKey, claims.Role)
		c.Set(permissionKey, claims.Permission)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleFromContext(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		respond.Error(c, http.StatusForbidden, "forbidden", "insufficient role", nil)
	}
}

// RequireEdit rejects callers without edit permission. Admins always pass.
func RequireEdit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) == "admin" || PermissionFromContext(c) == "edit" {
			c.Next()
			return
		}
		respond.Error(c, http.StatusForbidden, "forbidden", "edit permission required", nil)
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) int64 {
	if c == nil {
		return 0
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(int64); ok {
		return id
	}
	return 0
}

// UsernameFromContext fetches the username set by the auth middleware.
func UsernameFromContext(c *gin.Context) string {
	return stringFromContext(c, usernameKey)
}

// RoleFromContext fetches the role set by the auth middleware.
func RoleFromContext(c *gin.Context) string {
	return stringFromContext(c, roleKey)
}

// PermissionFromContext fetches the permission set by the auth middleware.
func PermissionFromContext(c *gin.Context) string {
	return stringFromContext(c, permissionKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
