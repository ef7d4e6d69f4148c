// Package events pushes playback and project notifications to connected
// displays and remotes over WebSocket. The hub is the controller's
// broadcast sink; every message fans out to all clients.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Remotes connect from the LAN with arbitrary origins; auth happens
	// at the API layer before the upgrade.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope is the wire format for every hub message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	Time string `json:"time"`
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until the context ends. Register, unregister
// and broadcast all funnel through here so no lock is needed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("display connected", "clients", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("display disconnected", "clients", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stall the show.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast wraps the payload in an envelope and fans it out. A full
// broadcast queue drops the message; displays resync from the next one.
func (h *Hub) Broadcast(event string, payload any) {
	data, err := json.Marshal(Envelope{
		Type: event,
		Data: payload,
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		h.logger.Error("cannot encode event", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("event queue full, dropping", "event", event)
	}
}

// ServeWS upgrades the request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	// A connect that races shutdown must not hang on the register channel
	// once Run has returned.
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	welcome, err := json.Marshal(Envelope{
		Type: "welcome",
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		client.send <- welcome
	}

	go client.writePump()
	go client.readPump()
}
