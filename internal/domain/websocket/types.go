// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Auth events (server -> client)
	EventTypeAuthState    EventType = "auth:state"
	EventTypeLogoutResult EventType = "auth:logout_result"
	EventTypeNavigate     EventType = "navigate"

	// Auth events (client -> server)
	EventTypeLogout EventType = "auth:logout"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType      `json:"type"`
	Data      interface{}    `json:"data,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id,omitempty"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NavigateData tells the presentation layer where to go. FullReload asks for
// a full page load instead of an in-app route change.
type NavigateData struct {
	Path       string `json:"path"`
	FullReload bool   `json:"full_reload"`
}

// LogoutResultData reports how a requested logout finished
type LogoutResultData struct {
	Mode  string `json:"mode"`
	Error string `json:"error,omitempty"`
}

// ConnectedData greets a freshly mounted client
type ConnectedData struct {
	ClientID string `json:"client_id"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
