// internal/handlers/admin/admin_handler.go
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"workwise-service/internal/domain/auth"
	"workwise-service/internal/middleware"
	xerrors "workwise-service/internal/pkg/errors"
	"workwise-service/internal/pkg/response"
	"workwise-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProfileAdmin is the administrative side of the profile store.
type ProfileAdmin interface {
	GetProfile(ctx context.Context, userID string) (*auth.Profile, error)
	UpdateRole(ctx context.Context, userID, role string) error
	NormalizeRoles(ctx context.Context) ([]auth.NormalizedRole, error)
	ListRoles(ctx context.Context, userIDs []string) (map[string]string, error)
}

// UserDeleter removes accounts and ends their sessions.
type UserDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

type AdminHandler struct {
	profiles ProfileAdmin
	users    UserDeleter
	logger   *zap.Logger
}

func NewAdminHandler(profiles ProfileAdmin, users UserDeleter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{profiles: profiles, users: users, logger: logger}
}

// UpdateRole sets a profile's role. Only the two known roles are accepted and
// they are stored in canonical form.
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	var req auth.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != string(auth.RoleAdmin) && role != string(auth.RoleUser) {
		response.ValidationError(c, "role must be 'user' or 'admin'", xerrors.ErrInvalidInput)
		return
	}

	target := c.Param("id")
	if err := h.profiles.UpdateRole(c.Request.Context(), target, role); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "profile not found")
			return
		}
		h.logger.Error("failed to update role", zap.String("target", target), zap.Error(err))
		response.Internal(c, "failed to update role")
		return
	}

	h.logger.Info("role updated",
		zap.String("by", middleware.MustGetUserID(c)),
		zap.String("by_email", middleware.GetEmail(c)),
		zap.String("target", target),
		zap.String("role", role),
	)
	response.Success(c, http.StatusOK, "role updated", gin.H{"id": target, "role": role})
}

type profileView struct {
	*auth.Profile
	Resolved auth.Role `json:"resolved_role"`
}

// GetProfile returns a profile with the role the session layer would derive
func (h *AdminHandler) GetProfile(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "profile not found")
			return
		}
		h.logger.Error("failed to fetch profile", zap.String("target", c.Param("id")), zap.Error(err))
		response.Internal(c, "failed to fetch profile")
		return
	}
	response.Success(c, http.StatusOK, "profile", profileView{Profile: p, Resolved: session.NormalizeRole(p.Role)})
}

// NormalizeRoles repairs stored roles that differ from their canonical form
func (h *AdminHandler) NormalizeRoles(c *gin.Context) {
	changed, err := h.profiles.NormalizeRoles(c.Request.Context())
	if err != nil {
		h.logger.Error("role normalization failed", zap.Error(err))
		response.Internal(c, "role normalization failed")
		return
	}

	h.logger.Info("roles normalized",
		zap.String("by", middleware.MustGetUserID(c)),
		zap.Int("changed", len(changed)),
	)
	response.Success(c, http.StatusOK, "roles normalized", gin.H{
		"changed": len(changed),
		"rows":    changed,
	})
}

type roleView struct {
	Stored   string    `json:"stored"`
	Resolved auth.Role `json:"resolved"`
	Found    bool      `json:"found"`
}

// ListRoles shows stored and resolved roles for ?ids=a,b,c
func (h *AdminHandler) ListRoles(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		response.ValidationError(c, "ids query parameter is required", xerrors.ErrInvalidInput)
		return
	}

	stored, err := h.profiles.ListRoles(c.Request.Context(), ids)
	if err != nil {
		h.logger.Error("failed to list roles", zap.Error(err))
		response.Internal(c, "failed to list roles")
		return
	}

	out := make(map[string]roleView, len(ids))
	for _, id := range ids {
		raw, found := stored[id]
		view := roleView{Stored: raw, Found: found, Resolved: auth.RoleUser}
		if found {
			view.Resolved = session.NormalizeRole(raw)
		}
		out[id] = view
	}
	response.Success(c, http.StatusOK, "roles", out)
}

// DeleteUser removes an account; its live clients are signed out
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	target := c.Param("id")
	if target == middleware.MustGetUserID(c) {
		response.ValidationError(c, "cannot delete your own account here", xerrors.ErrInvalidInput)
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), target); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("failed to delete user", zap.String("target", target), zap.Error(err))
		response.Internal(c, "failed to delete user")
		return
	}

	response.Success(c, http.StatusOK, "user deleted", gin.H{"id": target})
}
