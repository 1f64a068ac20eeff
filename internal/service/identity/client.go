// internal/service/identity/client.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"
	"workwise-service/internal/pkg/session"

	"go.uber.org/zap"
)

// TokenStore is the slice of a client's artifact storage holding the token.
type TokenStore interface {
	Get(ctx context.Context, scope session.ArtifactScope, key string) (string, error)
	Set(ctx context.Context, scope session.ArtifactScope, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, scope session.ArtifactScope, key string) error
}

// Client binds the identity service to one presentation client. It is the
// session.IdentityService handed to that client's session manager.
type Client struct {
	svc      *Service
	tokens   TokenStore
	clientID string
	tokenKey string
	logger   *zap.Logger

	mu     sync.Mutex
	token  string
	userID string

	// captured by PrepareSignOut for a token that was never loaded
	pending    string
	captureErr error
}

var (
	_ session.IdentityService = (*Client)(nil)
	_ session.SignOutPreparer = (*Client)(nil)
)

func NewClient(svc *Service, tokens TokenStore, clientID, tokenKey string, logger *zap.Logger) *Client {
	if tokenKey == "" {
		tokenKey = session.DefaultTokenKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		svc:      svc,
		tokens:   tokens,
		clientID: clientID,
		tokenKey: tokenKey,
		logger:   logger.With(zap.String("client_id", clientID)),
	}
}

func (c *Client) ClientID() string {
	return c.clientID
}

// SignIn exchanges credentials and persists the token for this client
// before announcing the new session.
func (c *Client) SignIn(ctx context.Context, req *auth.SignInRequest) (*auth.SignInResponse, error) {
	req.ClientID = c.clientID
	resp, err := c.svc.SignIn(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.adopt(ctx, resp.Session); err != nil {
		return nil, err
	}
	if err := c.svc.PublishSignedIn(ctx, resp.Session, c.clientID); err != nil {
		c.logger.Warn("failed to announce sign-in", zap.Error(err))
	}
	return resp, nil
}

// RemainingAttempts is the sign-in budget left for ip and email
func (c *Client) RemainingAttempts(ctx context.Context, ip, email string) (int64, error) {
	return c.svc.RemainingAttempts(ctx, ip, email)
}

// SignUp registers an account and signs this client in.
func (c *Client) SignUp(ctx context.Context, req *auth.SignUpRequest) (*auth.SignInResponse, error) {
	req.ClientID = c.clientID
	resp, err := c.svc.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.adopt(ctx, resp.Session); err != nil {
		return nil, err
	}
	if err := c.svc.PublishSignedIn(ctx, resp.Session, c.clientID); err != nil {
		c.logger.Warn("failed to announce sign-in", zap.Error(err))
	}
	return resp, nil
}

func (c *Client) adopt(ctx context.Context, s *auth.Session) error {
	if err := c.tokens.Set(ctx, session.ArtifactLocal, c.tokenKey, s.AccessToken, time.Until(s.ExpiresAt)); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	c.mu.Lock()
	c.token = s.AccessToken
	c.userID = s.UserID
	c.mu.Unlock()
	return nil
}

// GetCurrentSession returns the persisted session of this client, or nil when
// there is none or it is no longer valid.
func (c *Client) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return c.loadPersisted(ctx)
	}
	return c.verify(ctx, token)
}

func (c *Client) loadPersisted(ctx context.Context) (*auth.Session, error) {
	token, err := c.tokens.Get(ctx, session.ArtifactLocal, c.tokenKey)
	if errors.Is(err, xerrors.ErrNotFound) {
		c.forget()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.verify(ctx, token)
}

func (c *Client) verify(ctx context.Context, token string) (*auth.Session, error) {
	s, err := c.svc.Verify(ctx, token)
	if errors.Is(err, xerrors.ErrSessionExpired) {
		c.forget()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = token
	c.userID = s.UserID
	c.mu.Unlock()
	return s, nil
}

func (c *Client) forget() {
	c.mu.Lock()
	c.token = ""
	c.userID = ""
	c.pending = ""
	c.captureErr = nil
	c.mu.Unlock()
}

func (c *Client) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Subscribe forwards the events that concern this client: sign-ins on this
// client, and sign-outs and deletions of its current user.
func (c *Client) Subscribe(ctx context.Context, fn func(kind auth.EventKind, s *auth.Session)) (session.Subscription, error) {
	sub, err := c.svc.Events().Subscribe(ctx, func(ev auth.Event) {
		c.dispatch(ctx, ev, fn)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) dispatch(ctx context.Context, ev auth.Event, fn func(auth.EventKind, *auth.Session)) {
	switch ev.Kind {
	case auth.EventSignedIn:
		if ev.ClientID != c.clientID {
			return
		}
		c.forget()
		s, err := c.loadPersisted(ctx)
		if err != nil {
			c.logger.Warn("failed to load announced session", zap.Error(err))
			return
		}
		if s == nil {
			return
		}
		fn(auth.EventSignedIn, s)

	case auth.EventSignedOut:
		if ev.UserID == "" || ev.UserID != c.currentUser() {
			return
		}
		if ev.Scope != auth.ScopeGlobal && ev.ClientID != c.clientID {
			return
		}
		c.forget()
		fn(auth.EventSignedOut, nil)

	case auth.EventUserDeleted:
		if ev.UserID == "" || ev.UserID != c.currentUser() {
			return
		}
		c.forget()
		fn(auth.EventUserDeleted, nil)
	}
}

// PrepareSignOut captures the persisted token when none has been loaded yet,
// so SignOut can still revoke it after the artifacts are cleared.
func (c *Client) PrepareSignOut(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.token != ""
	c.mu.Unlock()
	if loaded {
		return nil
	}

	token, err := c.tokens.Get(ctx, session.ArtifactLocal, c.tokenKey)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.captureErr = err
		return fmt.Errorf("failed to read persisted token: %w", err)
	}
	c.pending = token
	c.captureErr = nil
	return nil
}

// SignOut ends this client's session with the given scope and drops the
// persisted token. Failing to find out whether a token exists is an error.
func (c *Client) SignOut(ctx context.Context, scope auth.SignOutScope) error {
	c.mu.Lock()
	token := c.token
	if token == "" {
		token = c.pending
	}
	captureErr := c.captureErr
	c.mu.Unlock()

	if token == "" {
		persisted, err := c.tokens.Get(ctx, session.ArtifactLocal, c.tokenKey)
		switch {
		case errors.Is(err, xerrors.ErrNotFound):
			if captureErr != nil {
				return fmt.Errorf("no credential to sign out: %w", captureErr)
			}
		case err != nil:
			return err
		}
		token = persisted
	}

	if token != "" {
		if err := c.svc.SignOut(ctx, token, c.clientID, scope); err != nil {
			return err
		}
	}

	c.forget()
	if err := c.tokens.Remove(ctx, session.ArtifactLocal, c.tokenKey); err != nil {
		c.logger.Warn("failed to drop persisted token", zap.Error(err))
	}
	return nil
}
