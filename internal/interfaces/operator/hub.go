// Package operator is the websocket surface operators use to watch
// conversations in near-real time (spec §4.H), generalized from the
// teacher's websocket.Hub/Client pair: clients subscribe by org_id instead
// of session_id, and broadcasts are filtered accordingly.
package operator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventMessage is what operators receive over the socket.
type EventMessage struct {
	Type      string         `json:"type"`
	OrgID     string         `json:"org_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Client is one connected operator websocket.
type Client struct {
	ID     string
	OrgID  string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// Hub fans events out to connected operator clients, filtered by org_id.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan EventMessage
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	mu         sync.RWMutex
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan EventMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run drains register/unregister/broadcast until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("operator connected", zap.String("client_id", client.ID), zap.String("org_id", client.OrgID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
		case event := <-h.broadcast:
			event.Timestamp = time.Now().Unix()
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for _, client := range h.clients {
				if client.OrgID != event.OrgID {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client.ID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues event for fan-out to clients whose OrgID matches.
func (h *Hub) Broadcast(event EventMessage) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("operator broadcast channel full, dropping event", zap.String("type", event.Type))
	}
}

// ServeWS upgrades the connection after the caller has already validated
// the JWT and resolved orgID from its claims.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID, orgID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("operator websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     clientID,
		OrgID:  orgID,
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		logger: h.logger,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
