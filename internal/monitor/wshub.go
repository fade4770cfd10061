package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/flowcore/engine/internal/executor"
)

// Hub fans execution updates out to subscribed websocket sessions,
// grounded on mbflow's WebSocketHub/WebSocketClient pair — the run loop,
// per-client send buffering, and ping/pong keepalive are carried over
// verbatim in shape; only the payload (a Record, not an observer.Event)
// and the registration key (sessionID, matching spec.md §6's
// sendUpdate(sessionId?, record)) differ.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan hubMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

type hubMessage struct {
	sessionID string
	payload   []byte
}

// Client is one subscribed websocket connection, optionally scoped to a
// single sessionID; an empty sessionID receives every update.
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	sessionID string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewHub creates a Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan hubMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.sessionID != "" && client.sessionID != msg.sessionID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					log.Warn().Str("client_id", client.ID).Msg("websocket client send buffer full, dropping update")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// SendUpdate implements Service: best-effort, a marshal failure or full
// client buffer is logged and swallowed, never surfaced to the caller.
func (h *Hub) SendUpdate(sessionID string, record *executor.Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		log.Warn().Err(err).Str("execution_id", record.ID).Msg("failed to marshal execution update")
		return
	}
	h.broadcast <- hubMessage{sessionID: sessionID, payload: payload}
}

// Upgrade promotes an HTTP request to a websocket connection and
// registers a Client scoped to sessionID ("" subscribes to everything).
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, sessionID string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	client := &Client{ID: sessionID, conn: conn, send: make(chan []byte, 256), hub: h, sessionID: sessionID}
	h.register <- client
	go client.writePump()
	return client, nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// Close unregisters the client from its hub.
func (c *Client) Close() {
	c.hub.unregister <- c
}

// ClientCount reports how many sessions are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
