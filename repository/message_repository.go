package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

// MessageFilterFields: "course" and "room" are the same column since the
// chat room of a course is named after the course id.
var MessageFilterFields = FilterFields{
	"_id":     "id",
	"id":      "id",
	"room":    "room",
	"course":  "room",
	"lecture": "lecture_id",
	"from":    "sender_id",
}

// MessageRepository stores chat messages.
//
// Create fails with pkg.ErrAlreadyExists when the room already holds a
// message with the same correlation id; the service then returns the
// existing record so a retried POST is harmless.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	GetByCorrelation(ctx context.Context, room, correlationID string) (*models.Message, error)
	List(ctx context.Context, f Filter) ([]models.Message, error)
	Update(ctx context.Context, message *models.Message) error
	Delete(ctx context.Context, id string) error
}
