package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/avolkov/tidechat/internal/domain"
	"github.com/avolkov/tidechat/internal/metrics"
)

// Hub owns the set of live connections and drives their lifecycle.
// Connections register on websocket upgrade and unregister when their
// read pump exits; unregistering cleans room membership and presence so
// nothing leaks past a disconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	registry *Registry
	presence *Tracker
	log      *slog.Logger
}

// NewHub creates a Hub over the given registry.
func NewHub(registry *Registry, log *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		log:      log,
	}
}

// SetPresence wires the presence tracker for disconnect transitions.
func (h *Hub) SetPresence(t *Tracker) {
	h.presence = t
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(count))
	h.log.Info("client connected", "conn_id", c.ID, "clients", count)
}

// Unregister removes a connection, clears its room memberships, applies
// the presence offline transition and closes its send channel. Safe to
// call more than once for the same connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	count := len(h.clients)
	h.mu.Unlock()

	h.registry.LeaveAll(c.ID)
	if h.presence != nil {
		h.presence.Disconnect(context.Background(), c.ID)
	}
	c.closeSend()

	metrics.ConnectionsActive.Set(float64(count))
	h.log.Info("client disconnected", "conn_id", c.ID, "clients", count)
}

// BroadcastAll delivers an event to every live connection. Used for
// presence changes, which are global rather than room-scoped.
func (h *Hub) BroadcastAll(t domain.EventType, payload any) (int, error) {
	data, err := domain.Encode(t, payload)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(data)
	}
	metrics.BroadcastDeliveriesTotal.Add(float64(len(targets)))
	return len(targets), nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
