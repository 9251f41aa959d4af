package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testClient(hub *Hub, id string, userID int, room string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Room:   room,
		Send:   make(chan []byte, 8),
		hub:    hub,
	}
}

func TestRoomActiveTracksConnections(t *testing.T) {
	hub := NewHub()

	assert.False(t, hub.RoomActive("consult-42"))

	a := testClient(hub, "a", 100, "consult-42")
	b := testClient(hub, "b", 200, "consult-42")
	hub.registerClient(a)
	hub.registerClient(b)

	assert.True(t, hub.RoomActive("consult-42"))
	assert.ElementsMatch(t, []int{100, 200}, hub.RoomParticipants("consult-42"))

	hub.unregisterClient(a)
	assert.True(t, hub.RoomActive("consult-42"))

	hub.unregisterClient(b)
	assert.False(t, hub.RoomActive("consult-42"))
	assert.Empty(t, hub.RoomParticipants("consult-42"))
}

func TestUnregisterUnknownClientIsNoop(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "ghost", 1, "consult-1")

	// Never registered; unregister must not panic or close anything twice.
	hub.unregisterClient(c)
	assert.False(t, hub.RoomActive("consult-1"))
}

func TestStopUnblocksLateUnregister(t *testing.T) {
	hub := NewHub()
	c := testClient(hub, "a", 100, "consult-1")
	hub.registerClient(c)
	hub.Stop()

	// A pump exiting after shutdown must not hang on the unregister channel.
	done := make(chan struct{})
	go func() {
		hub.Unregister(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after Stop")
	}

	// An unregister that still reaches the map path finds the client already
	// detached and must not close its channel a second time.
	hub.unregisterClient(c)
	assert.False(t, hub.RoomActive("consult-1"))
}

func TestRegisterAfterStopIsRejected(t *testing.T) {
	hub := NewHub()
	hub.Stop()

	c := testClient(hub, "late", 1, "consult-9")
	done := make(chan struct{})
	go func() {
		hub.Register(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after Stop")
	}

	hub.registerClient(c)
	assert.False(t, hub.RoomActive("consult-9"))

	// The rejected client's channel was closed, so its write pump exits.
	_, open := <-c.Send
	assert.False(t, open)
}

func TestRoomsAreIsolated(t *testing.T) {
	hub := NewHub()

	hub.registerClient(testClient(hub, "a", 100, "consult-1"))
	hub.registerClient(testClient(hub, "b", 200, "consult-2"))

	assert.Equal(t, []int{100}, hub.RoomParticipants("consult-1"))
	assert.Equal(t, []int{200}, hub.RoomParticipants("consult-2"))
}
