// internal/pkg/session/role.go
package session

import (
	"context"
	"strings"

	"workwise-service/internal/domain/auth"

	"go.uber.org/zap"
)

// NormalizeRole maps a stored role string onto a Role. Only a value that is
// exactly "admin" after trimming and lower-casing grants admin.
func NormalizeRole(raw string) auth.Role {
	if strings.ToLower(strings.TrimSpace(raw)) == string(auth.RoleAdmin) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

// RoleResolver derives a user's role from the profile store.
type RoleResolver struct {
	store  ProfileStore
	logger *zap.Logger
}

func NewRoleResolver(store ProfileStore, logger *zap.Logger) *RoleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleResolver{store: store, logger: logger}
}

// Resolve never fails: lookup errors, missing profiles and empty roles all
// resolve to RoleUser.
func (r *RoleResolver) Resolve(ctx context.Context, userID string) auth.Role {
	raw, found, err := r.store.GetRole(ctx, userID)
	switch {
	case err != nil:
		r.logger.Warn("role lookup failed, defaulting to user",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return auth.RoleUser
	case !found:
		r.logger.Debug("no profile found, defaulting to user", zap.String("user_id", userID))
		return auth.RoleUser
	case strings.TrimSpace(raw) == "":
		return auth.RoleUser
	}
	return NormalizeRole(raw)
}
