package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub fans events out to connected clients. The latest init.state event is
// replayed to every new client.
type Hub struct {
	clients    map[*Client]bool
	users      map[uuid.UUID]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	lastState []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if client.userID != nil {
		if h.users[*client.userID] == nil {
			h.users[*client.userID] = make(map[*Client]bool)
		}
		h.users[*client.userID][client] = true
	}

	if h.lastState != nil {
		select {
		case client.send <- h.lastState:
		default:
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(client)
}

// dropLocked forgets client and closes its send channel; h.mu must be held
func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	if client.userID != nil {
		delete(h.users[*client.userID], client)
		if len(h.users[*client.userID]) == 0 {
			delete(h.users, *client.userID)
		}
	}

	close(client.send)
}

func (h *Hub) deliver(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if event.Type == EventInitState {
		h.lastState = message
	}

	targets := h.clients
	if event.UserID != nil {
		targets = h.users[*event.UserID]
	}

	for client := range targets {
		select {
		case client.send <- message:
		default:
			h.dropLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.dropLocked(client)
	}
}

// Broadcast queues an event for every client. Events are dropped when the
// queue is full.
func (h *Hub) Broadcast(eventType EventType, data interface{}) {
	h.enqueue(Event{Type: eventType, Data: data, Timestamp: time.Now()})
}

// SendToUser queues an event for the clients authenticated as userID
func (h *Hub) SendToUser(userID uuid.UUID, eventType EventType, data interface{}) {
	h.enqueue(Event{UserID: &userID, Type: eventType, Data: data, Timestamp: time.Now()})
}

func (h *Hub) enqueue(event Event) {
	select {
	case h.broadcast <- event:
	default:
	}
}

func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) ConnectedUserClients(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.users[userID])
}
