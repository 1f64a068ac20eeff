// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"workwise-service/internal/domain/auth"
	"workwise-service/internal/middleware"
	xerrors "workwise-service/internal/pkg/errors"
	"workwise-service/internal/pkg/response"
	"workwise-service/internal/pkg/session"
	"workwise-service/internal/service/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	clients  *identity.Clients
	profiles session.ProfileStore
	opts     session.Options
	logger   *zap.Logger
}

func NewAuthHandler(clients *identity.Clients, profiles session.ProfileStore, opts session.Options, logger *zap.Logger) *AuthHandler {
	opts.OnChange = nil
	return &AuthHandler{
		clients:  clients,
		profiles: profiles,
		opts:     opts,
		logger:   logger,
	}
}

// ========== Registration ==========

// SignUp handles account registration (public endpoint)
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req auth.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	req.IPAddress = c.ClientIP()

	client, _ := h.clients.For(middleware.GetClientID(c))
	resp, err := client.SignUp(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			response.Conflict(c, "an account with this email already exists")
			return
		}
		h.logger.Error("registration failed", zap.String("email", req.Email), zap.Error(err))
		response.Internal(c, "registration failed, please try again")
		return
	}

	response.Success(c, http.StatusCreated, "registration successful", resp)
}

// ========== Login ==========

// Login exchanges credentials and binds the session to the caller's client id
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	req.IPAddress = c.ClientIP()

	client, _ := h.clients.For(middleware.GetClientID(c))
	resp, err := client.SignIn(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrRateLimited):
			response.TooManyRequests(c, xerrors.ErrRateLimited.Error())
		case errors.Is(err, xerrors.ErrInvalidCredentials):
			remaining, rerr := client.RemainingAttempts(c.Request.Context(), req.IPAddress, req.Email)
			if rerr != nil {
				response.Unauthorized(c, xerrors.ErrInvalidCredentials.Error())
				return
			}
			response.Error(c, http.StatusUnauthorized, xerrors.ErrInvalidCredentials.Error(), nil,
				gin.H{"attempts_remaining": remaining})
		default:
			h.logger.Error("login failed", zap.String("ip", req.IPAddress), zap.Error(err))
			response.Internal(c, "login failed, please try again")
		}
		return
	}

	h.logger.Info("user logged in",
		zap.String("user_id", resp.User.ID),
		zap.String("client_id", client.ClientID()),
	)
	response.Success(c, http.StatusOK, "login successful", resp)
}

// ========== State ==========

// State mounts a session manager for the caller's client, waits for it to
// settle and returns its snapshot.
func (h *AuthHandler) State(c *gin.Context) {
	m := h.mount(c.Request.Context(), middleware.GetClientID(c), discardNavigator{})
	defer m.Close()

	response.Success(c, http.StatusOK, "auth state", m.Snapshot())
}

// ========== Logout ==========

type logoutPayload struct {
	Mode       session.LogoutMode `json:"mode"`
	RedirectTo string             `json:"redirect_to,omitempty"`
	FullReload bool               `json:"full_reload"`
	Warning    string             `json:"warning,omitempty"`
}

// Logout runs the full logout flow for the caller's client and tells the
// caller where to go next.
func (h *AuthHandler) Logout(c *gin.Context) {
	nav := &recordingNavigator{}
	m := h.mount(c.Request.Context(), middleware.GetClientID(c), nav)
	defer m.Close()

	res := m.Logout(c.Request.Context())

	payload := logoutPayload{Mode: res.Mode}
	payload.RedirectTo, payload.FullReload = nav.last()
	if res.SignOutErr != nil {
		payload.Warning = "sign-out failed, signed out locally"
	}
	response.Success(c, http.StatusOK, "logged out", payload)
}

func (h *AuthHandler) mount(ctx context.Context, clientID string, nav session.Navigator) *session.Manager {
	m := session.NewManager(h.clients.Dependencies(clientID, h.profiles, nav), h.opts, h.logger)
	m.Start(ctx)
	select {
	case <-m.Ready():
	case <-ctx.Done():
	}
	return m
}

type discardNavigator struct{}

func (discardNavigator) Redirect(context.Context, string) error { return nil }
func (discardNavigator) Navigate(context.Context, string) error { return nil }

type recordingNavigator struct {
	mu         sync.Mutex
	path       string
	fullReload bool
}

func (n *recordingNavigator) Redirect(_ context.Context, path string) error {
	n.mu.Lock()
	n.path, n.fullReload = path, true
	n.mu.Unlock()
	return nil
}

func (n *recordingNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	n.path, n.fullReload = path, false
	n.mu.Unlock()
	return nil
}

func (n *recordingNavigator) last() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path, n.fullReload
}
