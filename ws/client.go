package ws

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write one frame.
	writeWait = 10 * time.Second

	// pongWait: three missed 30s heartbeats and the connection is considered gone.
	pongWait = 90 * time.Second

	// maxMessageSize bounds one inbound frame. A 2000-rune chat line in
	// multi-byte scripts plus the envelope fits.
	maxMessageSize = 16384

	// sendBufferSize is the per-client outbound buffer. A client that lets it
	// fill up is disconnected.
	sendBufferSize = 256

	// maxMessageRunes mirrors the REST limit on chat text.
	maxMessageRunes = 2000
)

// Client is one WebSocket connection. ReadPump and WritePump each run in
// their own goroutine; gorilla/websocket allows one reader and one writer.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	userName string
	send     chan []byte
	mu       sync.Mutex // guards conn writes

	// rooms and closed are guarded by hub.mu.
	rooms  map[string]bool
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID, userName string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		userName: userName,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[string]bool),
	}
}

// ReadPump reads frames until the connection drops, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event inbound
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event inbound) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpJoin:
		c.handleJoin(event)

	case OpLeave:
		c.handleLeave(event)

	case OpMessage:
		c.handleMessage(event)

	case OpDoubts:
		c.handleDoubts(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

func (c *Client) handleJoin(event inbound) {
	var data RoomData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.Room == "" {
		c.refuse(OpJoin, "", "room is required")
		return
	}

	if !c.hub.Join(c, data.Room) {
		c.refuse(OpJoin, data.Room, "unknown room")
		return
	}
	c.sendEvent(Event{Op: OpJoined, Data: RoomData{Room: data.Room}})
}

func (c *Client) handleLeave(event inbound) {
	var data RoomData
	if err := json.Unmarshal(event.Data, &data); err != nil || data.Room == "" {
		return
	}

	c.hub.Leave(c, data.Room)
	c.sendEvent(Event{Op: OpLeft, Data: RoomData{Room: data.Room}})
}

// handleMessage relays a chat line to the room. Identity comes from the
// token, never from the payload.
func (c *Client) handleMessage(event inbound) {
	var data MessageData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		c.refuse(OpMessage, "", "invalid message payload")
		return
	}

	data.Text = strings.TrimSpace(data.Text)
	if data.Text == "" || utf8.RuneCountInString(data.Text) > maxMessageRunes {
		c.refuse(OpMessage, data.Room, "message text must be 1-2000 characters")
		return
	}
	if !c.hub.InRoom(c, data.Room) {
		c.refuse(OpMessage, data.Room, "join the room first")
		return
	}
	if c.hub.allowRelay != nil && !c.hub.allowRelay(c.userID) {
		c.refuse(OpMessage, data.Room, "slow down")
		return
	}

	data.SenderID = c.userID
	data.SenderName = c.userName
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now().UTC()
	}

	c.hub.BroadcastToRoom(data.Room, Event{Op: OpMessage, Data: data})
}

func (c *Client) handleDoubts(event inbound) {
	var data DoubtData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		c.refuse(OpDoubts, "", "invalid doubts payload")
		return
	}

	if data.Doubts < 0 || data.Time < 0 {
		c.refuse(OpDoubts, data.Room, "doubts and time must be non-negative")
		return
	}
	if !c.hub.InRoom(c, data.Room) {
		c.refuse(OpDoubts, data.Room, "join the room first")
		return
	}

	data.SenderID = c.userID
	c.hub.BroadcastToRoom(data.Room, Event{Op: OpDoubts, Data: data})
}

func (c *Client) refuse(op, room, message string) {
	c.sendEvent(Event{Op: OpError, Data: ErrorData{Op: op, Room: room, Message: message}})
}

// sendEvent queues an event for this client only. A full buffer drops the
// connection.
func (c *Client) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal event for user %s: %v", c.userID, err)
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		go func() { c.hub.unregister <- c }()
	}
}

// WritePump drains the send channel onto the socket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// the hub removed this client
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
