// Package ws is the room transport: a WebSocket hub where every connection
// joins course rooms and receives the events published to them.
//
// Flow of a chat line:
//  1. The sender emits "message" over its socket and, in parallel, POSTs it
//     to /api/messages.
//  2. The hub relays the event to every member of the room, sender included.
//     There is no ordering, acknowledgement or backlog.
//  3. Edits and deletes go through REST; the message service publishes
//     message_update / message_delete to the room afterwards.
//
// Doubt spikes follow the same path as chat lines. Each one carries an
// event id chosen by the sender; the hub relays it untouched so receivers
// can drop the sender's own echo without confusing it with another
// student's spike of the same size at the same moment.
//
// Identity is never taken from a payload. The connection was authenticated
// with the access token in the upgrade request, and the hub overwrites
// sender id and name on every relayed frame with that identity.
//
// Delivery is best effort. A slow client whose send buffer fills up is
// dropped rather than allowed to stall the room; it reconnects, rejoins
// and re-reads history from the store, which is the only durable copy.
package ws

import (
	"encoding/json"
	"time"

	"github.com/medhanag29/rural-classroom/pkg/timeline"
)

// Event is one frame on the socket.
//
// Seq increases per outbound event across the hub. Clients may log gaps but
// must not rely on it for ordering.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// inbound is a client frame with its payload kept raw until the op is known.
type inbound struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// Client → server ops.
const (
	OpHeartbeat = "heartbeat"
	OpJoin      = "join"
	OpLeave     = "leave"
)

// Ops relayed in both directions.
const (
	OpMessage = "message"
	OpDoubts  = "doubts"
)

// Server → client ops.
const (
	OpHeartbeatAck  = "heartbeat_ack"
	OpJoined        = "joined"
	OpLeft          = "left"
	OpError         = "error"
	OpMessageUpdate = "message_update"
	OpMessageDelete = "message_delete"
)

// RoomData is the payload of join, leave, joined and left.
type RoomData struct {
	Room string `json:"room"`
}

// MessageData is a chat line as relayed. The hub overwrites SenderID and
// SenderName with the authenticated identity.
type MessageData struct {
	ID            string     `json:"id,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Room          string     `json:"room"`
	LectureID     string     `json:"lecture_id,omitempty"`
	SenderID      string     `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	Text          string     `json:"text"`
	Timestamp     time.Time  `json:"timestamp"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

// DoubtData is a raised doubt spike. Count and time tolerate numeric strings.
// EventID is chosen by the sender and is relayed untouched; it is the only
// way to tell the sender's own echo from a second spike of equal value.
type DoubtData struct {
	EventID   string           `json:"event_id,omitempty"`
	Room      string           `json:"room"`
	LectureID string           `json:"lecture_id,omitempty"`
	SenderID  string           `json:"sender_id"`
	Doubts    timeline.Numeric `json:"doubts"`
	Time      timeline.Numeric `json:"time"`
}

// MessageDeleteData identifies a removed message. CorrelationID lets peers
// that only saw the relayed copy, which has no id, drop it too.
type MessageDeleteData struct {
	ID            string `json:"id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Room          string `json:"room"`
	LectureID     string `json:"lecture_id,omitempty"`
}

// ErrorData explains a refused client op.
type ErrorData struct {
	Op      string `json:"op"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message"`
}
