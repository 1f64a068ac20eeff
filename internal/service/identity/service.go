// internal/service/identity/service.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"
	"workwise-service/internal/pkg/jwt"
	"workwise-service/internal/pkg/session"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists credential records.
type UserStore interface {
	CreateUser(ctx context.Context, u *auth.User) error
	FindUserByEmail(ctx context.Context, email string) (*auth.User, error)
	FindUserByID(ctx context.Context, id string) (*auth.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	SoftDeleteUser(ctx context.Context, id string) error
}

// ProfileWriter creates application profiles and assigns roles.
type ProfileWriter interface {
	CreateProfile(ctx context.Context, p *auth.Profile) error
	UpdateRole(ctx context.Context, userID, role string) error
}

// Service is the auth/identity service: credential exchange, token
// verification, sign-out and session-change events.
type Service struct {
	users       UserStore
	profiles    ProfileWriter
	jwtManager  *jwt.Manager
	registry    *Registry
	events      *EventBus
	rateLimiter *session.RateLimiter
	logger      *zap.Logger
}

func NewService(
	users UserStore,
	profiles ProfileWriter,
	jwtManager *jwt.Manager,
	registry *Registry,
	events *EventBus,
	rateLimiter *session.RateLimiter,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:       users,
		profiles:    profiles,
		jwtManager:  jwtManager,
		registry:    registry,
		events:      events,
		rateLimiter: rateLimiter,
		logger:      logger.Named("identity"),
	}
}

// Events exposes the session-change bus.
func (s *Service) Events() *EventBus {
	return s.events
}

// ========== Registration ==========

// SignUp creates an account and its profile, then signs the user in.
func (s *Service) SignUp(ctx context.Context, req *auth.SignUpRequest) (*auth.SignInResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: string(hashed),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &auth.Profile{
		ID:    user.ID,
		Name:  strings.TrimSpace(req.Name),
		Email: email,
		Role:  string(auth.RoleUser),
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		// Role resolution treats a missing profile as a plain user.
		s.logger.Error("failed to create profile", zap.String("user_id", user.ID), zap.Error(err))
	}

	return s.issue(ctx, user, profile.Name, req.ClientID)
}

// ========== Credential exchange ==========

// SignIn exchanges credentials for a session. Failures surface only
// xerrors.ErrInvalidCredentials or xerrors.ErrRateLimited to callers.
func (s *Service) SignIn(ctx context.Context, req *auth.SignInRequest) (*auth.SignInResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, xerrors.ErrNotFound) {
			s.logger.Error("user lookup failed", zap.Error(err))
		}
		return nil, xerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("invalid password",
			zap.String("user_id", user.ID),
			zap.Int64("attempts_remaining", remaining),
		)
		return nil, xerrors.ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}
	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	return s.issue(ctx, user, "", req.ClientID)
}

// issue signs a token and registers the session
func (s *Service) issue(ctx context.Context, user *auth.User, name, clientID string) (*auth.SignInResponse, error) {
	issued, err := s.jwtManager.Generator.GenerateAccessToken(user.ID, user.Email, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	sess := &auth.Session{
		ID:          issued.JTI,
		UserID:      user.ID,
		Email:       user.Email,
		AccessToken: issued.Token,
		IssuedAt:    issued.IssuedAt,
		ExpiresAt:   issued.ExpiresAt,
	}
	if err := s.registry.Register(ctx, sess, clientID); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session issued",
		zap.String("user_id", user.ID),
		zap.String("session_id", sess.ID),
		zap.String("client_id", clientID),
	)

	return &auth.SignInResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtManager.Generator.Ttl.Seconds()),
		ExpiresAt:   issued.ExpiresAt,
		User: auth.UserInfo{
			ID:    user.ID,
			Email: user.Email,
			Name:  name,
		},
		Session: sess,
	}, nil
}

// PublishSignedIn announces a new session to the client that owns it.
func (s *Service) PublishSignedIn(ctx context.Context, sess *auth.Session, clientID string) error {
	return s.events.Publish(ctx, auth.Event{
		Kind:      auth.EventSignedIn,
		UserID:    sess.UserID,
		ClientID:  clientID,
		SessionID: sess.ID,
	})
}

// RemainingAttempts reports how many sign-in attempts ip may still make for
// email in the current window.
func (s *Service) RemainingAttempts(ctx context.Context, ip, email string) (int64, error) {
	return s.rateLimiter.GetRemainingAttempts(ctx, ip, strings.ToLower(strings.TrimSpace(email)))
}

// ========== Verification ==========

// Verify checks the token signature and that its session is still live.
// Invalid, expired and revoked tokens yield xerrors.ErrSessionExpired.
func (s *Service) Verify(ctx context.Context, token string) (*auth.Session, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrSessionExpired, err.Error())
	}

	live, err := s.registry.Exists(ctx, claims.UserID, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, xerrors.ErrSessionExpired
	}

	sess := &auth.Session{
		ID:          claims.ID,
		UserID:      claims.UserID,
		Email:       claims.Email,
		AccessToken: token,
	}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// ========== Sign-out ==========

// SignOut ends the token's session, or every session of its user when scope
// is global. An already invalid token is not an error.
func (s *Service) SignOut(ctx context.Context, token, clientID string, scope auth.SignOutScope) error {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		s.logger.Debug("sign-out with invalid token", zap.Error(err))
		return nil
	}

	if scope == auth.ScopeGlobal {
		n, err := s.registry.RevokeAll(ctx, claims.UserID)
		if err != nil {
			return err
		}
		s.logger.Info("signed out everywhere", zap.String("user_id", claims.UserID), zap.Int("sessions", n))
	} else {
		scope = auth.ScopeLocal
		if err := s.registry.Revoke(ctx, claims.UserID, claims.ID); err != nil {
			return err
		}
		s.logger.Info("signed out", zap.String("user_id", claims.UserID), zap.String("session_id", claims.ID))
	}

	return s.events.Publish(ctx, auth.Event{
		Kind:      auth.EventSignedOut,
		UserID:    claims.UserID,
		ClientID:  clientID,
		SessionID: claims.ID,
		Scope:     scope,
	})
}

// DeleteUser removes the account's credentials and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.SoftDeleteUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.registry.RevokeAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", userID))

	return s.events.Publish(ctx, auth.Event{
		Kind:   auth.EventUserDeleted,
		UserID: userID,
	})
}
