package models

import (
	"strings"
	"time"
)

// Course is also the chat room: its id is the room name clients join.
type Course struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CoordinatorID string    `json:"coordinator_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateCourseRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (r *CreateCourseRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	return validateStruct(r)
}
