// Package network exposes the world over WebSocket: outbound announcements
// fan out to every connected client, inbound player actions are routed to
// the engine entry points.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/engine"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// Announcement is the outbound wire envelope.
type Announcement struct {
	Kind       string    `json:"kind"`
	ChannelRef string    `json:"channel_ref,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Body       any       `json:"body"`
}

// Hub maintains the set of active clients and broadcasts announcements to
// them. It implements engine.Announcer.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	engine     *engine.Engine
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// Bind attaches the engine after construction. The hub is handed to the
// engine as its announcer first, so the two are wired in two steps.
func (h *Hub) Bind(e *engine.Engine) {
	h.engine = e
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Announce serializes a world announcement and broadcasts it to all clients.
func (h *Hub) Announce(kind string, channelRef string, body any) {
	payload, err := json.Marshal(Announcement{
		Kind:       kind,
		ChannelRef: channelRef,
		Timestamp:  time.Now(),
		Body:       body,
	})
	if err != nil {
		h.logger.Error("Failed to serialize announcement " + kind + ": " + err.Error())
		metrics.Get().RecordWSError()
		return
	}
	select {
	case h.broadcast <- payload:
		metrics.Get().RecordWSMessage(false)
	default:
		// Broadcast backlog full; drop rather than stall the engine.
		metrics.Get().RecordWSError()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a WebSocket client session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: " + err.Error())
		metrics.Get().RecordWSError()
		return
	}
	client := NewClient(h, conn)
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}
