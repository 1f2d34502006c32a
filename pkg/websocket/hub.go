package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool

	// In-process subscribers, keyed by room. Navigation sessions consume the
	// same events pushed to websocket rooms through these channels.
	subscribers map[string]map[chan []byte]bool
	mutex       sync.RWMutex
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    primitive.ObjectID     `json:"user_id"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		broadcast:   make(chan []byte),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		rooms:       make(map[string]map[*Client]bool),
		subscribers: make(map[string]map[chan []byte]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	log.Printf("Client registered: %s (%s)", client.UserID.Hex(), client.Role)

	personalRoom := "user_" + client.UserID.Hex()
	h.joinRoom(client, personalRoom)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		for roomID, room := range h.rooms {
			if _, exists := room[client]; exists {
				delete(room, client)
				if len(room) == 0 {
					delete(h.rooms, roomID)
				}
			}
		}

		log.Printf("Client unregistered: %s", client.UserID.Hex())
	}
}

func (h *Hub) broadcastMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if msg.RoomID != "" {
		h.sendToRoom(msg.RoomID, msg)
	}
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	data, _ := json.Marshal(message)

	for ch := range h.subscribers[roomID] {
		select {
		case ch <- data:
		default:
			// Subscriber not draining; drop rather than block the hub.
		}
	}

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	for client := range room {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
			delete(room, client)
		}
	}
}

func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) {
	roomID := "user_" + userID.Hex()
	h.sendToRoom(roomID, message)
}

// PublishTripUpdate delivers a partial trip field update to everyone watching
// the trip, both websocket clients and in-process subscribers.
func (h *Hub) PublishTripUpdate(tripID primitive.ObjectID, fields map[string]interface{}) {
	message := Message{
		Type:      "trip_update",
		RoomID:    TripRoom(tripID),
		Timestamp: time.Now().Unix(),
		Data:      fields,
	}

	h.sendToRoom(message.RoomID, message)
}

// SubscribeTrip registers an in-process subscriber for a trip's update events.
// The returned cancel function must be called on session teardown.
func (h *Hub) SubscribeTrip(tripID primitive.ObjectID) (<-chan []byte, func()) {
	roomID := TripRoom(tripID)
	ch := make(chan []byte, 16)

	h.mutex.Lock()
	if h.subscribers[roomID] == nil {
		h.subscribers[roomID] = make(map[chan []byte]bool)
	}
	h.subscribers[roomID][ch] = true
	h.mutex.Unlock()

	cancel := func() {
		h.mutex.Lock()
		if subs, ok := h.subscribers[roomID]; ok {
			if _, exists := subs[ch]; exists {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(h.subscribers, roomID)
				}
			}
		}
		h.mutex.Unlock()
	}

	return ch, cancel
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) JoinTrip(client *Client, tripID primitive.ObjectID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.joinRoom(client, TripRoom(tripID))
}

func TripRoom(tripID primitive.ObjectID) string {
	return "trip_" + tripID.Hex()
}
