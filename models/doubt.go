package models

import (
	"time"

	"github.com/medhanag29/rural-classroom/pkg/timeline"
)

// Doubt is one recorded spike on a lecture's doubt timeline.
type Doubt struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id,omitempty"`
	Room      string    `json:"room"`
	LectureID string    `json:"lecture_id"`
	SenderID  string    `json:"sender_id"`
	Count     int       `json:"doubts"`
	Time      float64   `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateDoubtRequest accepts counts and times as numbers or numeric strings.
// EventID is the id the spike was relayed under; it makes a retried create
// return the stored record.
type CreateDoubtRequest struct {
	EventID   string           `json:"event_id" validate:"omitempty,max=64"`
	Room      string           `json:"room" validate:"required"`
	LectureID string           `json:"lecture_id" validate:"required"`
	Doubts    timeline.Numeric `json:"doubts" validate:"min=0,max=10000"`
	Time      timeline.Numeric `json:"time" validate:"min=0"`
}

func (r *CreateDoubtRequest) Validate() error {
	return validateStruct(r)
}
