// internal/service/identity/admin_bootstrap.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workwise-service/internal/domain/auth"
	xerrors "workwise-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// EnsureAdmin makes sure an account with email exists and holds the admin
// role (called on startup). An existing account keeps its password.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return fmt.Errorf("admin email and password must be provided")
	}
	if len(password) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		s.logger.Info("creating admin account", zap.String("email", email))
		resp, err := s.SignUp(ctx, &auth.SignUpRequest{Email: email, Password: password, Name: name})
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		// the bootstrap session is not handed to anyone
		if _, err := s.registry.RevokeAll(ctx, resp.User.ID); err != nil {
			s.logger.Warn("failed to drop bootstrap session", zap.Error(err))
		}
		return s.promote(ctx, resp.User.ID)
	case err != nil:
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	return s.promote(ctx, user.ID)
}

func (s *Service) promote(ctx context.Context, userID string) error {
	err := s.profiles.UpdateRole(ctx, userID, string(auth.RoleAdmin))
	if errors.Is(err, xerrors.ErrNotFound) {
		err = s.profiles.CreateProfile(ctx, &auth.Profile{ID: userID, Role: string(auth.RoleAdmin)})
	}
	if err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}
	s.logger.Info("admin role ensured", zap.String("user_id", userID))
	return nil
}
