// internal/handlers/websocket/websocket.go
package handlers

import (
	"net/http"
	"time"

	"workwise-service/internal/middleware"
	"workwise-service/internal/pkg/response"
	ws "workwise-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts connections from allowedOrigins; an empty list
// or "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades the request and mounts a session for the
// caller's client id
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	clientID := middleware.GetClientID(c)
	if clientID == "" {
		response.Error(c, http.StatusBadRequest, "missing client id", ws.ErrMissingClientID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, clientID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns WebSocket connection statistics (admin only)
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := h.hub.Stats()
	response.Success(c, http.StatusOK, "WebSocket stats", gin.H{
		"total_connections": stats.TotalConnections,
		"distinct_clients":  stats.DistinctClients,
		"timestamp":         time.Now(),
	})
}
