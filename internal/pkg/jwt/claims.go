// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess = "access"
)

// Claims represents the JWT claims of a session token
type Claims struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	ClientID       string `json:"client_id,omitempty"`
	SessionPurpose string `json:"session_purpose"`
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
