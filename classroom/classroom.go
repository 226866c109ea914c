// Package classroom is the client-side synchronization core of a live
// lecture: the chat transcript, the doubt timeline and the attendance
// capture session of one user in one course room.
//
// The core owns no network code. It drives four collaborators:
//
//   - Transport: the room-scoped realtime channel (see classroom/wsclient).
//   - Store: the REST persistence layer (see classroom/storeclient).
//   - Analyzer: speech, vision and summarizer services (see classroom/analysis).
//   - Notifier: where user-visible failures go.
//
// Every message is emitted on the transport first and persisted second.
// Peers receive it live; the store copy is authoritative and is what a
// reconnecting client re-fetches, since the transport replays no backlog.
package classroom

import (
	"context"
	"encoding/json"
	"io"
)

// Transport event names shared with the server hub.
const (
	EventMessage       = "message"
	EventDoubts        = "doubts"
	EventMessageUpdate = "message_update"
	EventMessageDelete = "message_delete"
)

// Store collections and buckets.
const (
	CollectionMessages   = "messages"
	CollectionDoubts     = "doubts"
	CollectionLectures   = "lectures"
	CollectionMaterials  = "materials"
	CollectionAttendance = "attendance"

	BucketMaterials = "materials-file"
)

// UnableToTranscribe is the speech service reply for silent or unusable
// audio. It is shown in the room but never persisted.
const UnableToTranscribe = "unable to transcribe"

// Transport is the room-scoped realtime channel. Delivery is at-least-once
// with no ordering and no backlog after a reconnect.
type Transport interface {
	// Join subscribes to room. Joining twice is harmless.
	Join(room string) error
	Leave(room string) error
	// Emit is fire-and-forget; an error means the frame was not written.
	Emit(event string, payload any) error
	On(event string, handler func(payload json.RawMessage))
	Off(event string)
	// OnReconnect runs fn after every successful reconnect, once the
	// joined rooms have been replayed.
	OnReconnect(fn func())
}

// Store is the durable record layer. Filters are query-by-example maps.
type Store interface {
	Find(ctx context.Context, collection string, filter map[string]any, out any) error
	Create(ctx context.Context, collection string, body, out any) error
	Update(ctx context.Context, collection, id string, body, out any) error
	Delete(ctx context.Context, collection, id string) error
	Upload(ctx context.Context, bucket, filename string, r io.Reader) (string, error)
}

// Analyzer wraps the opaque analysis services. Implementations report any
// failure, timeout or malformed answer as pkg.ErrExternalCallFailed.
type Analyzer interface {
	SpeechToText(ctx context.Context, audio []byte, mimeType, language string) (string, error)
	ImageToDoubts(ctx context.Context, image []byte, mimeType string) (string, error)
	ImageToRollNumbers(ctx context.Context, image []byte, mimeType string, absent []int, classStrength int) ([]int, error)
	Summarize(ctx context.Context, texts []string) ([]string, error)
}

// Notifier surfaces a failure to the user once.
type Notifier interface {
	Notify(err error)
}

// Action is a long-running operation type guarded by a busy flag.
type Action string

const (
	ActionTranscribe        Action = "transcribe"
	ActionDoubtCapture      Action = "doubt_capture"
	ActionAttendanceCapture Action = "attendance_capture"
)

// Identity is the signed-in user the session acts for.
type Identity struct {
	ID   string
	Name string
}
