package socket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		ID:     "test-" + userID,
		UserID: userID,
		Hub:    hub,
		Send:   make(chan []byte, 16),
		Rooms:  make(map[string]bool),
	}
}

// drainFor collects every event type seen on the client within the window.
func drainFor(c *Client, d time.Duration) map[EventType]int {
	seen := make(map[EventType]int)
	deadline := time.After(d)
	for {
		select {
		case data := <-c.Send:
			var ev Event
			if json.Unmarshal(data, &ev) == nil {
				seen[ev.Type]++
			}
		case <-deadline:
			return seen
		}
	}
}

func TestHubRoutesRoomEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newTestClient(hub, "alice")
	outsider := newTestClient(hub, "bob")
	hub.register <- subscriber
	hub.register <- outsider

	hub.JoinRoom(subscriber, "channel:c1")
	hub.SendToRoom("channel:c1", EventNewMessage, map[string]interface{}{"channelId": "c1"}, "")

	require.Equal(t, 1, drainFor(subscriber, 200*time.Millisecond)[EventNewMessage])
	require.Equal(t, 0, drainFor(outsider, 100*time.Millisecond)[EventNewMessage])
}

func TestHubRoomExclusion(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.register <- alice
	hub.register <- bob

	hub.JoinRoom(alice, "channel:c1")
	hub.JoinRoom(bob, "channel:c1")

	// Typing events exclude their originator
	hub.SendToRoom("channel:c1", EventUserTyping, map[string]interface{}{"userId": "alice"}, "alice")

	require.Equal(t, 1, drainFor(bob, 200*time.Millisecond)[EventUserTyping])
	require.Equal(t, 0, drainFor(alice, 100*time.Millisecond)[EventUserTyping])
}

func TestHubDirectEventsReachEveryConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	laptop := newTestClient(hub, "alice")
	phone := newTestClient(hub, "alice")
	hub.register <- laptop
	hub.register <- phone

	hub.SendToUser("alice", EventMention, map[string]interface{}{"messageId": "m1"})

	require.Equal(t, 1, drainFor(laptop, 200*time.Millisecond)[EventMention])
	require.Equal(t, 1, drainFor(phone, 200*time.Millisecond)[EventMention])
}

func TestHubTracksPresence(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "alice")
	hub.register <- client

	require.Eventually(t, func() bool { return hub.IsUserOnline("alice") }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, hub.GetConnectedClientsCount())

	hub.unregister <- client
	require.Eventually(t, func() bool { return !hub.IsUserOnline("alice") }, time.Second, 10*time.Millisecond)
}
