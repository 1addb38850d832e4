package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avolkov/tidechat/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// Client represents a single websocket connection. The associated user,
// if any, lives in the presence tracker, not here.
type Client struct {
	ID     string
	hub    *Hub
	router *Router
	conn   *websocket.Conn

	// mu guards send against a concurrent closeSend: broadcasts run
	// outside the registry and hub locks, so a disconnect can close
	// the channel while a snapshot still holds the client.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient creates a Client with a fresh connection id.
func NewClient(hub *Hub, router *Router, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		hub:    hub,
		router: router,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// ReadPump pumps events from the websocket connection into the router.
// Events from one connection dispatch in arrival order; the pump exits
// on read error and unregisters the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(domain.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.router.Dispatch(context.Background(), c, data)
	}
}

// WritePump pumps queued events to the websocket connection and keeps
// the connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

// Send queues raw bytes for delivery. Drops when the buffer is full so
// one slow consumer never blocks a broadcast, and drops after closeSend
// so a broadcast racing a disconnect never panics.
func (c *Client) Send(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// closeSend closes the send channel, ending WritePump. Idempotent.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// SendEvent encodes and queues one event for this connection only.
func (c *Client) SendEvent(t domain.EventType, payload any) error {
	data, err := domain.Encode(t, payload)
	if err != nil {
		return err
	}
	c.Send(data)
	return nil
}
