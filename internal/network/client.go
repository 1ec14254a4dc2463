package network

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1024
	// Minimum spacing between actions from one connection.
	actionInterval = 2 * time.Second
)

// PlayerAction represents an incoming command from a connected client.
type PlayerAction struct {
	Type     string          `json:"type"` // "ATTACK_MINION", "ANSWER_QUIZ", etc.
	PlayerID string          `json:"player_id"`
	EventID  string          `json:"event_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Client holds one WebSocket connection and its outbound queue.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	lastActionTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps messages from the websocket connection into the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Error("Failed to parse PlayerAction from WebSocket. err: " + err.Error())
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	if time.Since(c.lastActionTime) < actionInterval {
		c.hub.logger.Warn("Rate limit exceeded for client action from " + action.PlayerID)
		return
	}
	c.lastActionTime = time.Now()

	eng := c.hub.engine
	if eng == nil {
		c.hub.logger.Error("PlayerAction received before engine was bound")
		return
	}
	if action.PlayerID == "" {
		c.hub.logger.Warn("PlayerAction without player_id, dropping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch action.Type {
	case "ATTACK_MINION":
		c.reply("attack_result", eng.AttackMinion(ctx, action.EventID, action.PlayerID))
	case "ATTACK_VILLAIN":
		c.reply("attack_result", eng.AttackVillain(ctx, action.EventID, action.PlayerID))
	case "COLLECT":
		c.reply("collect_result", eng.CollectItem(ctx, action.EventID, action.PlayerID))
	case "ANSWER_QUIZ":
		var parsed struct {
			Question int `json:"question"`
			Option   int `json:"option"`
		}
		if err := json.Unmarshal(action.Payload, &parsed); err != nil {
			c.hub.logger.Warn("Failed to parse quiz payload from " + action.PlayerID)
			return
		}
		c.reply("quiz_result", eng.AnswerQuiz(ctx, action.EventID, action.PlayerID, parsed.Question, parsed.Option))
	case "ENTER_TOURNAMENT":
		c.reply("join_result", eng.EnterTournament(ctx, action.EventID, action.PlayerID))
	case "JOIN_TURF_WARS":
		var parsed struct {
			Team string `json:"team"`
			Role string `json:"role"`
		}
		if err := json.Unmarshal(action.Payload, &parsed); err != nil {
			c.hub.logger.Warn("Failed to parse turf-wars payload from " + action.PlayerID)
			return
		}
		c.reply("join_result", eng.JoinTurfWarsTeam(ctx, action.EventID, parsed.Team, parsed.Role, action.PlayerID))
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: " + action.Type)
	}
}

// reply sends a result envelope back to this client only.
func (c *Client) reply(kind string, body any) {
	payload, err := json.Marshal(Announcement{Kind: kind, Timestamp: time.Now(), Body: body})
	if err != nil {
		c.hub.logger.Error("Failed to serialize " + kind + " reply: " + err.Error())
		return
	}
	select {
	case c.send <- payload:
		metrics.Get().RecordWSMessage(false)
	default:
		metrics.Get().RecordWSError()
	}
}

// WritePump pumps messages from the hub to the websocket connection.
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
