// Package websocket streams link notifications and periodic link snapshots
// to browser and CLI clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/ports"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/link"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// Ensure compliance
var _ ports.Notifier = (*WSManager)(nil)

const (
	writeWait        = 5 * time.Second
	snapshotInterval = 2 * time.Second
	// sendBuffer is the number of frames queued per client before it is
	// considered stalled and disconnected.
	sendBuffer = 64
)

// Message is one frame sent to clients.
type Message struct {
	Type    string `json:"type"`
	Iface   string `json:"iface,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Payload any    `json:"payload"`
}

// LinkLister supplies the periodic "links" snapshot.
type LinkLister interface {
	Links() []domain.LinkStatus
}

// WSManager keeps the connected clients and fans messages out to them.
type WSManager struct {
	links    LinkLister
	upgrader gws.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client owns one connection. Only its writer goroutine writes to conn.
type client struct {
	conn   *gws.Conn
	remote string
	send   chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewWSManager creates a manager. allowedOrigins lists the browser origins
// accepted besides same-origin requests.
func NewWSManager(links LinkLister, allowedOrigins []string, logger *slog.Logger) *WSManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &WSManager{
		links:   links,
		logger:  logger.With("component", "websocket"),
		clients: make(map[*client]struct{}),
	}
	m.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			m.logger.Warn("rejected websocket origin", "origin", origin)
			return false
		},
	}
	return m
}

// Start launches the snapshot broadcaster; it stops with ctx.
func (m *WSManager) Start(ctx context.Context) {
	go m.processAndBroadcast(ctx)
}

// HandleWebSocket upgrades the request and registers the client.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, remote: r.RemoteAddr, send: make(chan []byte, sendBuffer)}
	m.mu.Lock()
	m.clients[c] = struct{}{}
	m.mu.Unlock()
	m.logger.Debug("websocket connected", "remote", r.RemoteAddr)

	go m.writePump(c)

	// Clients never send anything meaningful; reading detects the close.
	go func() {
		defer m.drop(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump drains the client's queue. When the queue is closed it sends a
// close frame and releases the connection.
func (m *WSManager) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gws.TextMessage, data); err != nil {
			m.drop(c)
			return
		}
	}
	c.conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseGoingAway, "shutting down"),
		time.Now().Add(time.Second))
}

func (m *WSManager) drop(c *client) {
	m.mu.Lock()
	_, ok := m.clients[c]
	delete(m.clients, c)
	m.mu.Unlock()
	if ok {
		c.close()
		m.logger.Debug("websocket disconnected", "remote", c.remote)
	}
}

// Clients returns the number of connected clients.
func (m *WSManager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Notify forwards a link notification to every client.
func (m *WSManager) Notify(ctx context.Context, iface string, n domain.Notification) {
	m.Broadcast(Message{
		Type:    string(n.Kind()),
		Iface:   iface,
		EventID: link.EventID(ctx),
		Payload: n,
	})
}

func (m *WSManager) processAndBroadcast(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if m.links != nil && m.Clients() > 0 {
				m.Broadcast(Message{Type: "links", Payload: m.links.Links()})
			}
		}
	}
}

// Broadcast queues msg for every client without waiting on the network. A
// client whose queue is full is disconnected.
func (m *WSManager) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("websocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		select {
		case c.send <- data:
		default:
			delete(m.clients, c)
			c.close()
			telemetry.NotificationsDropped.WithLabelValues("websocket").Inc()
			m.logger.Warn("websocket client too slow, disconnecting", "remote", c.remote)
		}
	}
}

func (m *WSManager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		delete(m.clients, c)
		c.close()
	}
}
