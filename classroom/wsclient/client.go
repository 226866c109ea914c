// Package wsclient is the client side of the room transport.
//
// A Client keeps one WebSocket open to the hub, sends a heartbeat, and
// redials with exponential backoff when the connection drops. Rooms joined
// through it are replayed after every reconnect; events missed while the
// socket was down are not, so OnReconnect callbacks re-fetch from the store.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/ws"
)

const writeWait = 10 * time.Second

// Options configure a Client. Zero durations take the defaults below.
type Options struct {
	URL          string
	Token        string
	Heartbeat    time.Duration // default 30s
	ReconnectMin time.Duration // default 1s
	ReconnectMax time.Duration // default 30s
	Dialer       *websocket.Dialer
}

// frame is one inbound event with its payload still raw.
type frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// Client is safe for concurrent use. Handlers run on the read goroutine
// and must not block.
type Client struct {
	opts   Options
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	rooms       map[string]bool
	handlers    map[string][]func(json.RawMessage)
	onReconnect []func()
	stop        chan struct{}
	stopped     bool

	writeMu sync.Mutex
}

// New creates a disconnected client. Call Run to connect.
func New(opts Options) *Client {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = 30 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		opts:     opts,
		dialer:   dialer,
		rooms:    make(map[string]bool),
		handlers: make(map[string][]func(json.RawMessage)),
		stop:     make(chan struct{}),
	}
}

// Run connects and keeps the connection alive until ctx is done or Close
// is called.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := c.opts.ReconnectMin
	connectedBefore := false

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[wsclient] dial failed, retrying in %s: %v", backoff, err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.opts.ReconnectMax)
			continue
		}
		backoff = c.opts.ReconnectMin

		c.serve(ctx, conn, connectedBefore)
		connectedBefore = true

		if ctx.Err() != nil {
			return
		}
		log.Printf("[wsclient] connection lost, reconnecting")
	}
}

// Close stops Run and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		close(c.stop)
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Connected reports whether a socket is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Join subscribes to room. While disconnected the room is only remembered
// and joined on the next connect.
func (c *Client) Join(room string) error {
	c.mu.Lock()
	c.rooms[room] = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, ws.Event{Op: ws.OpJoin, Data: ws.RoomData{Room: room}})
}

// Leave unsubscribes from room.
func (c *Client) Leave(room string) error {
	c.mu.Lock()
	delete(c.rooms, room)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.write(conn, ws.Event{Op: ws.OpLeave, Data: ws.RoomData{Room: room}})
}

// Emit sends one event. There is no acknowledgement; an error only means
// the frame could not be written.
func (c *Client) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: transport not connected", pkg.ErrNetworkFailure)
	}
	return c.write(conn, ws.Event{Op: event, Data: payload})
}

// On adds a handler for event. Several handlers may share an event.
func (c *Client) On(event string, handler func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Off removes every handler of event.
func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// OnReconnect registers fn to run after each reconnect, once the rooms have
// been joined again. It runs on its own goroutine.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = append(c.onReconnect, fn)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.opts.Token)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrNetworkFailure, err)
	}
	return conn, nil
}

// serve owns one connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, reconnected bool) {
	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	callbacks := append([]func(){}, c.onReconnect...)
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for _, room := range rooms {
		if err := c.write(conn, ws.Event{Op: ws.OpJoin, Data: ws.RoomData{Room: room}}); err != nil {
			log.Printf("[wsclient] failed to rejoin room %s: %v", room, err)
			return
		}
	}
	if reconnected {
		for _, fn := range callbacks {
			go fn()
		}
	}

	go c.heartbeat(conn, done)
	c.readLoop(conn)
}

func (c *Client) heartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(conn, ws.Event{Op: ws.OpHeartbeat}); err != nil {
				log.Printf("[wsclient] heartbeat failed: %v", err)
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop dispatches frames until the connection fails. Three missed
// heartbeat answers count as a dead connection.
func (c *Client) readLoop(conn *websocket.Conn) {
	readTimeout := 3 * c.opts.Heartbeat

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Printf("[wsclient] read error: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("[wsclient] skipping malformed frame: %v", err)
			continue
		}
		if f.Op == ws.OpError {
			log.Printf("[wsclient] server refused: %s", string(f.Data))
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	handlers := append([]func(json.RawMessage){}, c.handlers[f.Op]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(f.Data)
	}
}

func (c *Client) write(conn *websocket.Conn, event ws.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", pkg.ErrValidation, event.Op, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrNetworkFailure, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrNetworkFailure, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
