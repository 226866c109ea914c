package models

import (
	"strings"
	"time"
)

// Message is a persisted chat line. The JSON shape matches what the room
// transport relays so clients can merge both with the same decoder.
type Message struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Room          string     `json:"room"`
	LectureID     string     `json:"lecture_id,omitempty"`
	SenderID      string     `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	Text          string     `json:"text"`
	CreatedAt     time.Time  `json:"timestamp"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

// CreateMessageRequest persists a message that was already emitted to the
// room. CorrelationID makes the create idempotent per room.
type CreateMessageRequest struct {
	CorrelationID string     `json:"correlation_id" validate:"max=64"`
	Room          string     `json:"room" validate:"required"`
	LectureID     string     `json:"lecture_id"`
	Text          string     `json:"text" validate:"required,notblank,max=2000"`
	Timestamp     *time.Time `json:"timestamp"`
}

func (r *CreateMessageRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	return validateStruct(r)
}

// UpdateMessageRequest edits the text of a message.
type UpdateMessageRequest struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

func (r *UpdateMessageRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	return validateStruct(r)
}
