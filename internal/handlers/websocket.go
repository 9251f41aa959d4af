package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/carelink/backend/internal/admission"
	"github.com/carelink/backend/internal/database"
	"github.com/carelink/backend/internal/middleware"
	ws "github.com/carelink/backend/internal/websocket"
)

// WebSocketHandler attaches admitted participants to their session room's
// presence channel.
type WebSocketHandler struct {
	hub      *ws.Hub
	db       *database.Database
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, db *database.Database, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &WebSocketHandler{
		hub: hub,
		db:  db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowAll || allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// HandleSession upgrades the connection and binds it to a consultation room.
// Only the consultation's employee or guardian may attach.
func (h *WebSocketHandler) HandleSession(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(int)

	room := c.Query("room")
	meetingID, err := admission.MeetingIDFromRoom(room)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}

	meeting, err := h.db.GetConsultation(meetingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if meeting.EmployeeID != userID && meeting.GuardianID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, userID, room)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
