// Package broadcast routes outbound frames to live connections by room,
// by connection id and by user.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
)

// ErrClientNotFound is returned when unicasting to an unknown connection.
var ErrClientNotFound = errors.New("client not found")

// Frame is the JSON envelope written to clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live connection. Frames queued for it are drained by the
// transport through Outbound.
type Client struct {
	ID          string
	UserID      string
	DisplayName string

	send   chan []byte
	closed bool
}

// NewClient creates a client with a bounded outbound queue.
func NewClient(id, userID, displayName string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:          id,
		UserID:      userID,
		DisplayName: displayName,
		send:        make(chan []byte, buffer),
	}
}

// Outbound returns the queue of encoded frames. It is closed when the client
// is unregistered or the hub shuts down.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Hub manages connections, room membership and per-user connection sets.
type Hub struct {
	clients map[string]*Client            // clientID -> Client
	rooms   map[string]map[string]*Client // room -> clientID -> Client
	users   map[string]map[string]*Client // userID -> clientID -> Client
	joined  map[string]map[string]bool    // clientID -> set of rooms
	done    chan struct{}
	mu      sync.RWMutex
	logger  types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		users:   make(map[string]map[string]*Client),
		joined:  make(map[string]map[string]bool),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then closes every client queue.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down", "clients", h.ClientCount())
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		closeClient(client)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]*Client)
	h.users = make(map[string]map[string]*Client)
	h.joined = make(map[string]map[string]bool)
}

// closeClient must be called with h.mu held for writing.
func closeClient(c *Client) {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[string]*Client)
	}
	h.users[client.UserID][client.ID] = client
	h.logger.Debug("Client registered", "client_id", client.ID, "user_id", client.UserID)
}

// Unregister removes a client from the hub and all its rooms, then closes its
// queue. Unregistering an unknown client is a no-op.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)

	for room := range h.joined[clientID] {
		h.removeFromRoom(clientID, room)
	}
	delete(h.joined, clientID)

	if conns := h.users[client.UserID]; conns != nil {
		delete(conns, clientID)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
		}
	}
	closeClient(client)
	h.logger.Debug("Client unregistered", "client_id", clientID, "user_id", client.UserID)
}

// JoinRoom adds a client to a room. A client may be in several rooms at once.
// It returns false when the client is unknown.
func (h *Hub) JoinRoom(clientID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][clientID] = client
	if h.joined[clientID] == nil {
		h.joined[clientID] = make(map[string]bool)
	}
	h.joined[clientID][room] = true
	h.logger.Debug("Client joined room", "client_id", clientID, "room", room)
	return true
}

func (h *Hub) removeFromRoom(clientID, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// BroadcastToRoom queues the frame for every client in room and returns how
// many clients it was queued for.
func (h *Hub) BroadcastToRoom(room, event string, payload any) (int, error) {
	data, err := encode(event, payload)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.rooms[room] {
		if h.enqueue(client, event, data) {
			sent++
		}
	}
	return sent, nil
}

// Unicast queues the frame for one client.
func (h *Hub) Unicast(clientID, event string, payload any) error {
	data, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	h.enqueue(client, event, data)
	return nil
}

// FindOtherConnections returns the ids of userID's connections that have not
// joined excludingRoom. An empty result is not an error.
func (h *Hub) FindOtherConnections(userID, excludingRoom string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var ids []string
	for id := range h.users[userID] {
		if h.joined[id][excludingRoom] {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// UserInRoom reports whether any connection of userID has joined room.
func (h *Hub) UserInRoom(userID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id := range h.users[userID] {
		if h.joined[id][room] {
			return true
		}
	}
	return false
}

// enqueue never blocks; a full queue drops the frame for that client.
// Must be called with h.mu held.
func (h *Hub) enqueue(client *Client, event string, data []byte) bool {
	if client.closed {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		h.logger.Warn("Outbound queue full, dropping frame",
			"client_id", client.ID, "user_id", client.UserID, "event", event)
		return false
	}
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	return data, nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients in a room.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// UserConnectionCount returns the number of live connections for a user.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
