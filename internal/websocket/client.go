// internal/websocket/client.go
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	wstypes "workwise-service/internal/domain/websocket"
	"workwise-service/internal/pkg/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var errSendBufferFull = errors.New("send buffer full")

// Client is one websocket connection of a presentation client. It carries the
// connection's session manager and acts as its navigator.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	clientID string
	logger   *zap.Logger

	manager *session.Manager

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

var _ session.Navigator = (*Client)(nil)

func NewClient(hub *Hub, conn *websocket.Conn, clientID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 64),
		clientID: clientID,
		logger:   hub.logger.With(zap.String("client_id", clientID)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) ClientID() string {
	return c.clientID
}

// Manager returns the session manager mounted for this connection
func (c *Client) Manager() *session.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

// Context is cancelled when the connection closes
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) attach(m *session.Manager) {
	c.mu.Lock()
	c.manager = m
	c.mu.Unlock()
}

// PushState forwards a session snapshot to the connection.
func (c *Client) PushState(s session.Snapshot) {
	if err := c.SendMessage(wstypes.NewMessage(wstypes.EventTypeAuthState, s)); err != nil && !errors.Is(err, ErrClientClosed) {
		c.logger.Warn("failed to push auth state", zap.Error(err))
	}
}

// Redirect asks the presentation layer for a full page load of path.
func (c *Client) Redirect(_ context.Context, path string) error {
	return c.SendMessage(wstypes.NewMessage(wstypes.EventTypeNavigate, wstypes.NavigateData{
		Path:       path,
		FullReload: true,
	}))
}

// Navigate asks the presentation layer for an in-app route change.
func (c *Client) Navigate(_ context.Context, path string) error {
	return c.SendMessage(wstypes.NewMessage(wstypes.EventTypeNavigate, wstypes.NavigateData{
		Path: path,
	}))
}

// ReadPump handles incoming messages from client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		c.handleMessage(message)
	}
}

// WritePump handles outgoing messages to client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.drain()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain flushes messages queued before close
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// handleMessage processes incoming messages from client
func (c *Client) handleMessage(data []byte) {
	msg, err := wstypes.ParseMessage(data)
	if err != nil {
		c.SendError("invalid_message", "Failed to parse message", err.Error())
		return
	}

	handled, err := c.hub.HandleClientMessage(c.ctx, c, msg)
	if err != nil {
		c.SendError("handler_error", "Failed to process message", err.Error())
		return
	}
	if handled {
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))
	default:
		c.SendError("unknown_event", "Unsupported event type", string(msg.Type))
	}
}

// SendMessage queues a message for the connection. A client that cannot
// keep up is disconnected.
func (c *Client) SendMessage(msg *wstypes.WSMessage) error {
	data, err := msg.ToJSON()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, disconnecting client")
		go c.hub.Unregister(c)
		return errSendBufferFull
	}
}

// SendError sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypeError, wstypes.ErrorData{
		Code:    code,
		Message: message,
		Details: details,
	}))
}

// Close tears down the session manager and stops both pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		manager := c.manager
		c.mu.Unlock()

		if manager != nil {
			manager.Close()
		}
		c.cancel()
	})
}
