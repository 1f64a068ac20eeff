// internal/domain/auth/entity.go
package auth

import "time"

// Role is the coarse authorization label attached to a profile.
type Role string

const (
	RoleUnknown Role = ""
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
)

// EventKind is a session-change notification emitted by the identity service.
type EventKind string

const (
	EventSignedIn    EventKind = "signed_in"
	EventSignedOut   EventKind = "signed_out"
	EventUserDeleted EventKind = "user_deleted"
)

// SignOutScope selects which sessions a sign-out invalidates.
type SignOutScope string

const (
	ScopeLocal  SignOutScope = "local"  // only the caller's session
	ScopeGlobal SignOutScope = "global" // every session of the user
)

// Session is the server-issued proof of authentication for a subject.
// Consumers treat it as opaque apart from the subject fields.
type Session struct {
	ID          string    `json:"id"` // token jti
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Profile is the application record of a registered subject.
// Role is free text in storage; read-time normalization decides privilege.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is the credential record owned by the identity service.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Event is the wire form of a session-change notification.
type Event struct {
	Kind      EventKind    `json:"kind"`
	UserID    string       `json:"user_id"`
	ClientID  string       `json:"client_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Scope     SignOutScope `json:"scope,omitempty"`
	At        time.Time    `json:"at"`
}
