// internal/socket/broadcaster.go
package socket

import "fmt"

// Broadcaster is the publish side of the pub/sub transport: channel-scoped
// topics (channel:{id}) and per-user topics. Delivery is best-effort; an
// offline subscriber simply misses the event.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// PublishToChannel publishes an event to every live subscriber of a channel
// topic, optionally excluding one user.
func (b *Broadcaster) PublishToChannel(channelID string, eventType EventType, payload map[string]interface{}, excludeUserID string) {
	topic := fmt.Sprintf("channel:%s", channelID)
	b.hub.SendToRoom(topic, eventType, payload, excludeUserID)
}

// PublishToUser publishes an event to every connection of one user.
func (b *Broadcaster) PublishToUser(userID string, eventType EventType, payload map[string]interface{}) {
	b.hub.SendToUser(userID, eventType, payload)
}

// PublishToUsers publishes an event to multiple specific users.
func (b *Broadcaster) PublishToUsers(userIDs []string, eventType EventType, payload map[string]interface{}) {
	for _, userID := range userIDs {
		b.hub.SendToUser(userID, eventType, payload)
	}
}
