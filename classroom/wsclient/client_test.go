package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/ws"
)

type fakeTokens map[string]*models.TokenClaims

func (f fakeTokens) ValidateAccessToken(token string) (*models.TokenClaims, error) {
	if claims, ok := f[token]; ok {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func newHub(t *testing.T) (*ws.Hub, string) {
	t.Helper()

	hub := ws.NewHub()
	hub.SetRoomChecker(func(room string) bool { return strings.HasPrefix(room, "course-") })
	go hub.Run()

	tokens := fakeTokens{
		"tok-ana":  {UserID: "u-ana", Username: "ana", Name: "Ana", Role: models.RoleStudent},
		"tok-ravi": {UserID: "u-ravi", Username: "ravi", Name: "Ravi", Role: models.RoleCoordinator},
	}
	srv := httptest.NewServer(http.HandlerFunc(ws.NewHandler(hub, tokens, nil).HandleConnection))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// start runs a client and returns a channel fed by every event of op.
func start(t *testing.T, url, token string, ops ...string) (*Client, map[string]chan json.RawMessage) {
	t.Helper()

	c := New(Options{URL: url, Token: token, ReconnectMin: 20 * time.Millisecond, ReconnectMax: 100 * time.Millisecond})
	chans := make(map[string]chan json.RawMessage)
	for _, op := range ops {
		ch := make(chan json.RawMessage, 16)
		chans[op] = ch
		c.On(op, func(d json.RawMessage) { ch <- d })
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	return c, chans
}

func recv(t *testing.T, ch chan json.RawMessage) json.RawMessage {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestJoinBeforeConnectIsReplayed(t *testing.T) {
	_, url := newHub(t)

	ana := New(Options{URL: url, Token: "tok-ana"})
	joined := make(chan json.RawMessage, 1)
	ana.On(ws.OpJoined, func(d json.RawMessage) { joined <- d })
	require.NoError(t, ana.Join("course-1"), "joining while disconnected only records the room")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ana.Run(ctx)

	var room ws.RoomData
	require.NoError(t, json.Unmarshal(recv(t, joined), &room))
	assert.Equal(t, "course-1", room.Room)
	ana.Close()
}

func TestEmit_RelayedToRoom(t *testing.T) {
	_, url := newHub(t)
	ana, anaCh := start(t, url, "tok-ana", ws.OpJoined, ws.OpMessage)
	ravi, raviCh := start(t, url, "tok-ravi", ws.OpJoined, ws.OpMessage)

	require.Eventually(t, func() bool { return ana.Connected() && ravi.Connected() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ana.Join("course-1"))
	require.NoError(t, ravi.Join("course-1"))
	recv(t, anaCh[ws.OpJoined])
	recv(t, raviCh[ws.OpJoined])

	require.NoError(t, ana.Emit(ws.OpMessage, map[string]any{"room": "course-1", "correlation_id": "c-1", "text": "hello"}))

	for _, ch := range []chan json.RawMessage{anaCh[ws.OpMessage], raviCh[ws.OpMessage]} {
		var msg ws.MessageData
		require.NoError(t, json.Unmarshal(recv(t, ch), &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "c-1", msg.CorrelationID)
		assert.Equal(t, "u-ana", msg.SenderID)
	}
}

func TestEmit_NotConnected(t *testing.T) {
	c := New(Options{URL: "ws://127.0.0.1:1/ws"})
	err := c.Emit(ws.OpMessage, map[string]string{"text": "x"})
	assert.ErrorIs(t, err, pkg.ErrNetworkFailure)
}

func TestUnknownRoomRefused(t *testing.T) {
	_, url := newHub(t)
	c, chans := start(t, url, "tok-ana", ws.OpError)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Join("lobby"))

	var refusal ws.ErrorData
	require.NoError(t, json.Unmarshal(recv(t, chans[ws.OpError]), &refusal))
	assert.Equal(t, ws.OpJoin, refusal.Op)
}

func TestReconnect_RejoinsAndNotifies(t *testing.T) {
	hub, url := newHub(t)
	ana, anaCh := start(t, url, "tok-ana", ws.OpJoined, ws.OpMessage)
	ravi, raviCh := start(t, url, "tok-ravi", ws.OpJoined)

	reconnected := make(chan string, 2)
	ana.OnReconnect(func() { reconnected <- "ana" })
	ravi.OnReconnect(func() { reconnected <- "ravi" })

	require.Eventually(t, func() bool { return ana.Connected() && ravi.Connected() }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ana.Join("course-1"))
	recv(t, anaCh[ws.OpJoined])

	// drop every connection server side
	hub.Shutdown()

	var who []string
	for len(who) < 2 {
		select {
		case name := <-reconnected:
			who = append(who, name)
		case <-time.After(3 * time.Second):
			t.Fatal("reconnect callback not called")
		}
	}
	assert.ElementsMatch(t, []string{"ana", "ravi"}, who)
	recv(t, anaCh[ws.OpJoined])

	require.NoError(t, ravi.Join("course-1"))
	recv(t, raviCh[ws.OpJoined])
	require.NoError(t, ravi.Emit(ws.OpMessage, map[string]any{"room": "course-1", "text": "after the drop"}))

	var msg ws.MessageData
	require.NoError(t, json.Unmarshal(recv(t, anaCh[ws.OpMessage]), &msg))
	assert.Equal(t, "after the drop", msg.Text)
}

func TestOff(t *testing.T) {
	c := New(Options{URL: "ws://unused"})
	called := false
	c.On(ws.OpMessage, func(json.RawMessage) { called = true })
	c.Off(ws.OpMessage)

	c.dispatch(frame{Op: ws.OpMessage, Data: json.RawMessage(`{}`)})
	assert.False(t, called)
}
