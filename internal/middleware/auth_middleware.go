// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"
	"workwise-service/internal/pkg/response"
	"workwise-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token into its live session.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Session, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	roles    *session.RoleResolver
}

func NewAuthMiddleware(verifier TokenVerifier, roles *session.RoleResolver) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		roles:    roles,
	}
}

// Auth is the base authentication middleware that validates session tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		s, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, xerrors.ErrSessionExpired) {
				response.Unauthorized(c, "invalid or expired token")
				return
			}
			response.Error(c, http.StatusServiceUnavailable, "unable to verify session", nil)
			return
		}

		setSession(c, s)
		c.Next()
	}
}

// RequireAdmin admits only subjects whose profile role resolves to admin.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		role := m.roles.Resolve(c.Request.Context(), userID)
		c.Set(ctxRole, role)
		if role != auth.RoleAdmin {
			response.Error(c, http.StatusForbidden, "insufficient permissions", xerrors.ErrForbidden)
			return
		}

		c.Next()
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireAdmin)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireAdmin(),
	}
}

// OptionalAuth middleware that doesn't abort if no token is provided
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		s, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		setSession(c, s)
		c.Next()
	}
}

func setSession(c *gin.Context, s *auth.Session) {
	c.Set(ctxUserID, s.UserID)
	c.Set(ctxSessionID, s.ID)
	c.Set(ctxEmail, s.Email)
	c.Set(ctxToken, s.AccessToken)
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
