package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MessageType tags session-channel frames.
type MessageType string

const (
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	TypeSessionJoin  MessageType = "session_join"
	TypeSessionLeave MessageType = "session_leave"
	TypeSessionUsers MessageType = "session_users"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Room      string          `json:"room,omitempty"`
	UserID    int             `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Hub tracks which participants currently hold a live connection into a
// session room. A room with at least one connected participant is an active
// session; the recording coordinator keys off that.
type Hub struct {
	clients map[string]*Client            // by client id
	rooms   map[string]map[string]*Client // roomName -> client id -> client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop shuts the hub down. Clients are detached under the lock so a late
// unregister finds nothing left to close.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
}

// Register and Unregister hand the client to the run loop. Once the hub is
// stopped nothing drains the channels, so both bail out on the done context
// instead of blocking a pump goroutine forever.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A registration already queued when Stop ran must not resurrect the hub.
	if h.ctx.Err() != nil {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
		return
	}

	h.clients[client.ID] = client

	if _, ok := h.rooms[client.Room]; !ok {
		h.rooms[client.Room] = make(map[string]*Client)
	}
	h.rooms[client.Room][client.ID] = client

	log.Info().Str("client", client.ID).Int("user_id", client.UserID).Str("room", client.Room).Msg("session participant connected")

	joinMsg := Message{
		Type:      TypeSessionJoin,
		Room:      client.Room,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(joinMsg); err == nil {
		h.broadcastToRoomExcept(client.Room, data, client.ID)
	}

	h.sendRoomUsers(client)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	delete(h.clients, client.ID)
	close(client.Send)

	if room, ok := h.rooms[client.Room]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, client.Room)
		} else {
			leaveMsg := Message{
				Type:      TypeSessionLeave,
				Room:      client.Room,
				UserID:    client.UserID,
				Timestamp: time.Now(),
			}
			if data, err := json.Marshal(leaveMsg); err == nil {
				h.broadcastToRoomExcept(client.Room, data, client.ID)
			}
		}
	}

	log.Info().Str("client", client.ID).Int("user_id", client.UserID).Str("room", client.Room).Msg("session participant disconnected")
}

// RoomActive reports whether any participant is connected to the room.
func (h *Hub) RoomActive(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room]) > 0
}

// RoomParticipants returns the user ids connected to a room.
func (h *Hub) RoomParticipants(room string) []int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[int]bool)
	var users []int
	for _, client := range h.rooms[room] {
		if !seen[client.UserID] {
			seen[client.UserID] = true
			users = append(users, client.UserID)
		}
	}
	return users
}

func (h *Hub) broadcastToRoomExcept(room string, message []byte, excludeID string) {
	for _, client := range h.rooms[room] {
		if client.ID == excludeID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			log.Warn().Err(ErrClientQueueFull).Str("client", client.ID).Msg("dropping frame")
		}
	}
}

func (h *Hub) sendRoomUsers(client *Client) {
	seen := make(map[int]bool)
	users := make([]int, 0)
	for _, c := range h.rooms[client.Room] {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			users = append(users, c.UserID)
		}
	}

	msg := Message{
		Type:      TypeSessionUsers,
		Room:      client.Room,
		UserID:    client.UserID,
		Timestamp: time.Now(),
	}

	if data, err := json.Marshal(users); err == nil {
		msg.Data = data
		if frame, err := json.Marshal(msg); err == nil {
			select {
			case client.Send <- frame:
			default:
				log.Warn().Str("client", client.ID).Msg("failed to send room users")
			}
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Message{Type: TypePing, Timestamp: time.Now()}
	if data, err := json.Marshal(msg); err == nil {
		for _, client := range h.clients {
			select {
			case client.Send <- data:
			default:
			}
		}
	}
}
