// internal/websocket/handler/auth.go
package handlers

import (
	"context"
	"fmt"

	wstypes "workwise-service/internal/domain/websocket"
	ws "workwise-service/internal/websocket"

	"go.uber.org/zap"
)

// AuthHandler serves the auth events a connected client may send.
type AuthHandler struct {
	logger *zap.Logger
}

func NewAuthHandler(logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{logger: logger}
}

// SupportedEvents returns events this handler supports
func (h *AuthHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeLogout,
	}
}

// HandleMessage processes auth-related messages
func (h *AuthHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeLogout:
		return h.handleLogout(client)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleLogout runs the logout off the read loop so pings and repeated
// submissions are still served while it waits out its redirect delay.
func (h *AuthHandler) handleLogout(client *ws.Client) error {
	manager := client.Manager()
	if manager == nil {
		return fmt.Errorf("no session mounted")
	}

	go func() {
		res := manager.Logout(client.Context())

		data := wstypes.LogoutResultData{Mode: string(res.Mode)}
		if res.SignOutErr != nil {
			data.Error = "sign-out failed, signed out locally"
		}
		h.logger.Info("logout finished",
			zap.String("client_id", client.ClientID()),
			zap.String("mode", data.Mode),
		)
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeLogoutResult, data))
	}()
	return nil
}
