// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "workwise-service/internal/domain/websocket"
	"workwise-service/internal/pkg/session"

	"go.uber.org/zap"
)

// SessionMounter builds the session manager of a newly connected client. The
// client is the manager's navigator and receives its snapshots.
type SessionMounter func(client *Client) *session.Manager

type Hub struct {
	// Connections by browser client id. One client id may hold several
	// connections (tabs sharing the same storage).
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	mount  SessionMounter
	logger *zap.Logger
}

// Stats summarizes live connections
type Stats struct {
	TotalConnections int `json:"total_connections"`
	DistinctClients  int `json:"distinct_clients"`
}

func NewHub(mount SessionMounter, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:         make(map[string]map[*Client]bool),
		Register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		mount:           mount,
		logger:          logger.Named("ws"),
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) error {
	return h.handlerRegistry.Register(handler)
}

// HandleClientMessage delegates msg to its registered handler. handled is
// false when no handler claims the event type.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (handled bool, err error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Unregister detaches client from the hub and tears it down.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) registerClient(client *Client) {
	var manager *session.Manager
	if h.mount != nil {
		manager = h.mount(client)
		client.attach(manager)
	}

	h.mu.Lock()
	if h.clients[client.clientID] == nil {
		h.clients[client.clientID] = make(map[*Client]bool)
	}
	h.clients[client.clientID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.String("client_id", client.clientID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, wstypes.ConnectedData{
		ClientID: client.clientID,
	}))

	if manager != nil {
		manager.Start(client.ctx)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.clientID]
	if ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, client.clientID)
			}
		} else {
			ok = false
		}
	}
	total := h.totalClients()
	h.mu.Unlock()

	client.Close()
	if ok {
		h.logger.Info("client disconnected",
			zap.String("client_id", client.clientID),
			zap.Int("total", total),
		)
	}
}

// ClientConnections returns the number of live connections of a client id
func (h *Hub) ClientConnections(clientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[clientID])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		TotalConnections: h.totalClients(),
		DistinctClients:  len(h.clients),
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	var all []*Client
	for _, clients := range h.clients {
		for client := range clients {
			all = append(all, client)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	close(h.done)
	for _, client := range all {
		client.Close()
	}
}
