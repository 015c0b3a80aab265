// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType defines the type of WebSocket event
type EventType string

const (
	// Notification events
	EventNotification      EventType = "notification"
	EventNotificationCount EventType = "notification_count"

	// Channel events
	EventChannelCreated   EventType = "channel_created"
	EventChannelArchived  EventType = "channel_archived"
	EventChannelDeleted   EventType = "channel_deleted"
	EventAddedToChannel   EventType = "added_to_channel"
	EventRemovedFromChannel EventType = "removed_from_channel"
	EventMemberAdded      EventType = "member_added"
	EventMemberRemoved    EventType = "member_removed"
	EventMemberRoleChanged EventType = "member_role_changed"

	// Message events
	EventNewMessage EventType = "new_message"
	EventMention    EventType = "mention"

	// User presence
	EventUserOnline  EventType = "user_online"
	EventUserOffline EventType = "user_offline"
	EventUserTyping  EventType = "user_typing"

	// System events
	EventPing EventType = "ping"
	EventPong EventType = "pong"
	EventAck  EventType = "ack"
)

// Event represents a WebSocket event envelope
type Event struct {
	Type      EventType              `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Hub      *Hub
	Send     chan []byte
	Rooms    map[string]bool // Subscribed topics (channel:id, user:id)
	mu       sync.Mutex
	lastPing time.Time
}

// Hub maintains the set of active clients and routes events to
// channel topics and per-user topics.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool
	roomClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast     chan []byte
	roomBroadcast chan *RoomEvent
	directMessage chan *DirectEvent

	mu sync.RWMutex
}

// RoomEvent is an event addressed to every subscriber of one topic
type RoomEvent struct {
	Room    string
	Message []byte
	Exclude string // User ID to exclude from delivery
}

// DirectEvent is an event addressed to all connections of one user
type DirectEvent struct {
	UserID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		userClients:   make(map[string]map[*Client]bool),
		roomClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		broadcast:     make(chan []byte, 256),
		roomBroadcast: make(chan *RoomEvent, 256),
		directMessage: make(chan *DirectEvent, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("[Hub] WebSocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)

		case re := <-h.roomBroadcast:
			h.broadcastToRoom(re)

		case de := <-h.directMessage:
			h.sendToUser(de)

		case <-pingTicker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]bool)
	}
	h.userClients[client.UserID][client] = true

	log.Printf("[Hub] ✅ Client registered: user=%s, id=%s, total_clients=%d",
		client.UserID, client.ID, len(h.clients))

	go h.BroadcastUserStatus(client.UserID, true)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)

		if clients, ok := h.userClients[client.UserID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.userClients, client.UserID)
				go h.BroadcastUserStatus(client.UserID, false)
			}
		}

		for room := range client.Rooms {
			if clients, ok := h.roomClients[room]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.roomClients, room)
				}
			}
		}

		close(client.Send)
		log.Printf("[Hub] ❌ Client disconnected: user=%s, id=%s, total_clients=%d",
			client.UserID, client.ID, len(h.clients))
	}
}

func (h *Hub) broadcastToAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- message:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) broadcastToRoom(re *RoomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.roomClients[re.Room]
	if !ok {
		return
	}

	for client := range clients {
		if re.Exclude != "" && client.UserID == re.Exclude {
			continue
		}
		select {
		case client.Send <- re.Message:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) sendToUser(de *DirectEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.userClients[de.UserID]
	if !ok {
		// At-most-once: the user is offline, the event is simply lost.
		return
	}

	for client := range clients {
		select {
		case client.Send <- de.Message:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := Event{
		Type:      EventPing,
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// ============================================
// Public Methods for Topic Management
// ============================================

// JoinRoom subscribes a client to a topic
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.Rooms[room] = true
	client.mu.Unlock()

	if h.roomClients[room] == nil {
		h.roomClients[room] = make(map[*Client]bool)
	}
	h.roomClients[room][client] = true

	log.Printf("[Hub] 👥 Client joined topic: user=%s, topic=%s", client.UserID, room)
}

// LeaveRoom unsubscribes a client from a topic
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.Rooms, room)
	client.mu.Unlock()

	if clients, ok := h.roomClients[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.roomClients, room)
		}
	}

	log.Printf("[Hub] 👋 Client left topic: user=%s, topic=%s", client.UserID, room)
}

// ============================================
// Public Methods for Sending Events
// ============================================

// SendToUser publishes an event to every connection of one user
func (h *Hub) SendToUser(userID string, eventType EventType, payload map[string]interface{}) {
	msg := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Error marshaling event: %v", err)
		return
	}

	h.directMessage <- &DirectEvent{
		UserID:  userID,
		Message: data,
	}
}

// SendToRoom publishes an event to every subscriber of a topic
func (h *Hub) SendToRoom(room string, eventType EventType, payload map[string]interface{}, excludeUserID string) {
	msg := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Error marshaling event: %v", err)
		return
	}

	h.roomBroadcast <- &RoomEvent{
		Room:    room,
		Message: data,
		Exclude: excludeUserID,
	}
}

// BroadcastUserStatus broadcasts user online/offline status
func (h *Hub) BroadcastUserStatus(userID string, online bool) {
	eventType := EventUserOffline
	if online {
		eventType = EventUserOnline
	}

	msg := Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"userId": userID,
			"online": online,
		},
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	h.broadcast <- data
}

// ============================================
// Query Methods
// ============================================

// IsUserOnline checks if a user is currently connected
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.userClients[userID]
	return ok
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
