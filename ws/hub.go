package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// EventPublisher is what the services use to push events into rooms.
// Services depend on this interface, not on *Hub, so tests can record calls.
type EventPublisher interface {
	BroadcastToRoom(room string, event Event)
	RoomSize(room string) int
}

// RoomChecker reports whether a room may be joined. Rooms are course ids.
type RoomChecker func(room string) bool

// RelayLimiter reports whether a user may relay one more chat line now.
type RelayLimiter func(userID string) bool

// Hub tracks every connection and the rooms each one joined.
//
// Connections register and unregister through channels drained by Run.
// Room membership changes happen inline under mu, since join/leave come from
// the connection's own read goroutine and must be visible to its next event.
//
// A room exists only while it has members. Joining asks the RoomChecker
// first, so a typo or a deleted course yields an error frame instead of a
// silent room nobody else is in. Joining twice is harmless, and leaving a
// room the connection never joined is a no-op.
//
// Broadcasts hold the read lock and never block on a member: a full send
// buffer gets the client unregistered instead. Every outbound event gets
// the next value of seq so a client log can show gaps; nothing
// retransmits on a gap.
type Hub struct {
	// clients is the set of live connections.
	clients map[*Client]bool

	// rooms: room → member set. A client appears at most once per room.
	rooms map[string]map[*Client]bool

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// seq numbers outbound broadcast events.
	seq atomic.Int64

	// Set once during startup (init_callbacks.go), read-only afterwards.
	roomExists RoomChecker
	allowRelay RelayLimiter
}

// NewHub creates an empty hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetRoomChecker installs the room validation used by join.
// Without one every non-empty room is accepted.
func (h *Hub) SetRoomChecker(fn RoomChecker) {
	h.roomExists = fn
}

// SetRelayLimiter installs the per-user throttle applied to relayed messages.
func (h *Hub) SetRelayLimiter(fn RelayLimiter) {
	h.allowRelay = fn
}

// Run is the hub's event loop. Started from main.go with `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	log.Printf("[ws] client connected: user=%s (connections: %d)", client.userID, len(h.clients))
}

// removeClient drops the client from every room and closes its send channel.
// Safe to call twice; the second call finds nothing.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closed = true

	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	close(client.send)

	log.Printf("[ws] client disconnected: user=%s (connections: %d)", client.userID, len(h.clients))
}

// Join adds the client to room. Joining a room twice is a no-op, so the
// client still receives each event once. It returns false when the room is
// unknown.
func (h *Hub) Join(client *Client, room string) bool {
	if room == "" {
		return false
	}
	if h.roomExists != nil && !h.roomExists(room) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if client.closed {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	if members[client] {
		return true
	}
	members[client] = true
	client.rooms[room] = true

	log.Printf("[ws] user=%s joined room=%s (members: %d)", client.userID, room, len(members))
	return true
}

// Leave removes the client from room. Leaving a room not joined is a no-op.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, room)
}

func (h *Hub) leaveLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	delete(client.rooms, room)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether the client is currently a member of room.
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms[room][client]
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// BroadcastToRoom sends event to every member of room, the sender included.
// Slow clients whose buffer is full are disconnected rather than waited on.
func (h *Hub) BroadcastToRoom(room string, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal room event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// Shutdown closes every connection's send channel (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closed = true
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
