package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live connection of an admitted participant into a session
// room. A client belongs to exactly one room for its lifetime.
type Client struct {
	ID     string
	UserID int
	Room   string
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int, room string) *Client {
	return &Client{
		ID:     fmt.Sprintf("%d-%s", userID, uuid.NewString()),
		UserID: userID,
		Room:   room,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		hub:    hub,
	}
}

// ReadPump drains inbound frames until the connection drops. Inbound traffic
// is presence-only; the session media itself flows through the video
// provider, not through this channel.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client", c.ID).Msg("websocket read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(ErrInvalidMessage).Str("client", c.ID).Msg("dropping frame")
			continue
		}

		switch msg.Type {
		case TypePing:
			pong, _ := json.Marshal(Message{Type: TypePong, Timestamp: time.Now()})
			select {
			case c.Send <- pong:
			default:
			}
		case TypePong:
			// keepalive reply, nothing to do
		default:
			log.Debug().Str("client", c.ID).Str("type", string(msg.Type)).Msg("ignoring frame")
		}
	}
}

// WritePump serializes all outbound frames for this connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
