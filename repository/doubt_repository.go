package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

var DoubtFilterFields = FilterFields{
	"_id":     "id",
	"id":      "id",
	"room":    "room",
	"course":  "room",
	"lecture": "lecture_id",
	"from":    "sender_id",
	"event":   "event_id",
}

// DoubtRepository stores doubt spikes. List orders by lecture time.
//
// Create fails with pkg.ErrAlreadyExists when the room already holds a
// spike with the same event id.
type DoubtRepository interface {
	Create(ctx context.Context, d *models.Doubt) error
	GetByEvent(ctx context.Context, room, eventID string) (*models.Doubt, error)
	List(ctx context.Context, f Filter) ([]models.Doubt, error)
}
