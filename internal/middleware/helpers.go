// internal/middleware/helpers.go
package middleware

import (
	"workwise-service/internal/domain/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
	ctxEmail     = "email"
	ctxToken     = "access_token"
	ctxRole      = "role"
	ctxClientID  = "client_id"
)

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// GetUserID returns the authenticated subject id
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ctxUserID)
}

// GetSessionID returns the jti of the authenticated session
func GetSessionID(c *gin.Context) (string, bool) {
	return getString(c, ctxSessionID)
}

func GetEmail(c *gin.Context) string {
	s, _ := getString(c, ctxEmail)
	return s
}

// GetClientID returns the browser client id set by ClientID()
func GetClientID(c *gin.Context) string {
	s, _ := getString(c, ctxClientID)
	return s
}

// MustGetUserID gets the user id from context or panics
func MustGetUserID(c *gin.Context) string {
	id, exists := GetUserID(c)
	if !exists {
		panic("user_id not found in context")
	}
	return id
}

// GetRole returns the role resolved by RequireAdmin, if it ran
func GetRole(c *gin.Context) auth.Role {
	v, exists := c.Get(ctxRole)
	if !exists {
		return auth.RoleUnknown
	}
	role, _ := v.(auth.Role)
	return role
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := GetUserID(c)
	return exists
}
