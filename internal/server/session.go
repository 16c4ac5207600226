package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gomoku/backend/internal/analytics"
	"gomoku/backend/internal/game"
)

var ErrNoMatch = errors.New("no match in progress")

const (
	writeWait = 10 * time.Second
	sendQueue = 32
)

type clientMessage struct {
	Type string `json:"type"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

// wsClient is one websocket connection. For its match it is the Renderer,
// the OutcomeSink and, in host or guest mode, the Transport.
type wsClient struct {
	username string
	mode     game.Mode
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	server   *Server
	log      zerolog.Logger
	// joinRoom is the room a guest asked for; roomID is set once seated.
	joinRoom string

	mu     sync.Mutex
	match  *game.Match
	side   game.Cell
	roomID string
	closed bool
}

func (c *wsClient) setMatch(m *game.Match) {
	c.mu.Lock()
	c.match = m
	c.mu.Unlock()
}

func (c *wsClient) currentMatch() *game.Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match
}

func (c *wsClient) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *wsClient) matchID() string {
	if m := c.currentMatch(); m != nil {
		return m.ID
	}
	return ""
}

func (c *wsClient) PlaceMarker(side game.Cell, m game.Move) {
	c.sendJSON(map[string]any{
		"type": "marker",
		"side": side.String(),
		"row":  m.Row,
		"col":  m.Col,
	})
	id := c.matchID()
	c.server.analytics.Publish(context.Background(), analytics.MoveCommitted, id, map[string]any{
		"matchId": id,
		"mode":    c.mode.String(),
		"side":    side.String(),
		"row":     m.Row,
		"col":     m.Col,
	})
}

func (c *wsClient) GameOver(o game.Outcome) {
	c.mu.Lock()
	side := c.side
	c.mu.Unlock()
	frame := map[string]any{
		"type":    "game_over",
		"outcome": o.String(),
	}
	if side.IsSide() {
		frame["result"] = o.ForSide(side)
	}
	c.sendJSON(frame)
}

// SendMove relays a committed local move to the other seat of the room.
func (c *wsClient) SendMove(roomID string, position int) error {
	peer := c.server.rooms.peer(roomID, c)
	if peer == nil {
		return ErrPeerGone
	}
	m := peer.currentMatch()
	if m == nil {
		return ErrPeerGone
	}
	return c.server.manager.OpponentMove(m.ID, position)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever was queued before the client closed.
func (c *wsClient) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer c.server.unregister(c)
	if err := c.server.setup(c); err != nil {
		c.sendJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(map[string]any{"type": "error", "message": "malformed message"})
			continue
		}
		switch msg.Type {
		case "move":
			if err := c.click(msg.Row, msg.Col); err != nil {
				c.sendJSON(map[string]any{"type": "error", "message": err.Error()})
			}
		case "exit":
			return
		default:
			c.sendJSON(map[string]any{"type": "error", "message": "unknown message type"})
		}
	}
}

func (c *wsClient) click(row, col int) error {
	m := c.currentMatch()
	if m == nil {
		return ErrNoMatch
	}
	return c.server.manager.Click(m.ID, row, col)
}

// sendJSON drops the frame when the client is gone or too far behind.
func (c *wsClient) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode frame")
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Msg("send queue full, dropping frame")
	}
}

// close stops the write pump once. It reports whether this call did it.
func (c *wsClient) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.done)
	return true
}
