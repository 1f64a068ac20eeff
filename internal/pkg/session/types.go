// internal/pkg/session/types.go
package session

import (
	"context"
	"time"

	"workwise-service/internal/domain/auth"
)

// IdentityService is the auth/identity capability the manager consumes.
type IdentityService interface {
	// GetCurrentSession returns the persisted session, or nil when nobody is signed in.
	GetCurrentSession(ctx context.Context) (*auth.Session, error)

	// Subscribe registers fn for session-change notifications. The
	// subscription is live when Subscribe returns.
	Subscribe(ctx context.Context, fn func(kind auth.EventKind, s *auth.Session)) (Subscription, error)

	SignOut(ctx context.Context, scope auth.SignOutScope) error
}

// SignOutPreparer is implemented by identity services that keep their
// credential in the artifact store. Logout calls PrepareSignOut before the
// store is cleared.
type SignOutPreparer interface {
	PrepareSignOut(ctx context.Context) error
}

// Subscription is a disposable notification handle.
type Subscription interface {
	Unsubscribe()
}

// ProfileStore looks up a role by exact user id match.
type ProfileStore interface {
	GetRole(ctx context.Context, userID string) (role string, found bool, err error)
}

// ArtifactScope mirrors the two kinds of client-side storage.
type ArtifactScope string

const (
	ArtifactLocal   ArtifactScope = "local"
	ArtifactSession ArtifactScope = "session"
)

// ArtifactStore holds auth material persisted outside the identity service.
type ArtifactStore interface {
	Clear(ctx context.Context) error
	Remove(ctx context.Context, scope ArtifactScope, key string) error
}

// Navigator moves the presentation layer to another location.
type Navigator interface {
	// Redirect performs a full page load.
	Redirect(ctx context.Context, path string) error
	// Navigate performs an in-app route change.
	Navigate(ctx context.Context, path string) error
}

// Dependencies are the collaborators injected by the composition root.
type Dependencies struct {
	Identity  IdentityService
	Profiles  ProfileStore
	Artifacts ArtifactStore
	Navigator Navigator
}

// Options tune timing and keys. Zero values take defaults.
type Options struct {
	SafetyTimeout         time.Duration
	RedirectDelay         time.Duration
	FallbackRedirectDelay time.Duration
	EntryPath             string
	TokenKey              string

	// OnChange receives every snapshot while the manager is mounted. It is
	// called synchronously and must not call Logout.
	OnChange func(Snapshot)
}

const (
	DefaultSafetyTimeout         = 3 * time.Second
	DefaultRedirectDelay         = 100 * time.Millisecond
	DefaultFallbackRedirectDelay = 500 * time.Millisecond
	DefaultEntryPath             = "/"
	DefaultTokenKey              = "workwise.auth.token"
)

func (o Options) withDefaults() Options {
	if o.SafetyTimeout <= 0 {
		o.SafetyTimeout = DefaultSafetyTimeout
	}
	if o.RedirectDelay < 0 {
		o.RedirectDelay = 0
	}
	if o.FallbackRedirectDelay < 0 {
		o.FallbackRedirectDelay = 0
	}
	if o.EntryPath == "" {
		o.EntryPath = DefaultEntryPath
	}
	if o.TokenKey == "" {
		o.TokenKey = DefaultTokenKey
	}
	return o
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		SafetyTimeout:         DefaultSafetyTimeout,
		RedirectDelay:         DefaultRedirectDelay,
		FallbackRedirectDelay: DefaultFallbackRedirectDelay,
		EntryPath:             DefaultEntryPath,
		TokenKey:              DefaultTokenKey,
	}
}

// Snapshot is the read-only view handed to the presentation layer.
type Snapshot struct {
	IsAuthenticated bool           `json:"is_authenticated"`
	IsAdmin         bool           `json:"is_admin"`
	Loading         bool           `json:"loading"`
	Busy            bool           `json:"busy"`        // logout in progress, controls disabled
	CollapseUI      bool           `json:"collapse_ui"` // close account menus and transient UI
	UserID          string         `json:"user_id,omitempty"`
	Email           string         `json:"email,omitempty"`
	Role            auth.Role      `json:"role,omitempty"`
	LastEvent       auth.EventKind `json:"last_event,omitempty"`
}

// LogoutMode reports how the presentation layer was sent to the entry point.
type LogoutMode string

const (
	LogoutRedirect LogoutMode = "redirect"
	LogoutNavigate LogoutMode = "navigate"
	LogoutSkipped  LogoutMode = "skipped"
)

// LogoutResult describes a finished logout. Errors are informational only.
type LogoutResult struct {
	Mode       LogoutMode
	SignOutErr error
	PurgeErr   error
}
