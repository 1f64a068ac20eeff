// internal/domain/auth/dto.go
package auth

import "time"

// SignUpRequest for account registration
type SignUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Name      string `json:"name"`
	ClientID  string `json:"-"`
	IPAddress string `json:"-"`
}

// SignInRequest for credential exchange
type SignInRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	ClientID  string `json:"-"`
	IPAddress string `json:"-"`
}

// SignInResponse is returned by a successful credential exchange
type SignInResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
	Session     *Session  `json:"-"`
}

// UserInfo is the public view of the signed-in subject
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UpdateRoleRequest for administrative role changes
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// NormalizedRole reports one profile rewritten by the role repair tool
type NormalizedRole struct {
	ProfileID string `json:"profile_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
