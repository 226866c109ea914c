package models

import (
	"strings"
	"time"
)

// Material is a named bundle of uploaded files attached to a course.
type Material struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Name      string    `json:"name"`
	Files     []string  `json:"files"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateMaterialRequest struct {
	CourseID string   `json:"course_id" validate:"required"`
	Name     string   `json:"name" validate:"required,notblank,max=200"`
	Files    []string `json:"files" validate:"required,min=1,max=20,dive,required,url"`
}

func (r *CreateMaterialRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	return validateStruct(r)
}
