package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

// CourseFilterFields are the keys accepted by GET /api/courses?query=.
var CourseFilterFields = FilterFields{
	"_id":         "id",
	"id":          "id",
	"coordinator": "coordinator_id",
}

// CourseRepository stores courses.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, f Filter) ([]models.Course, error)
}
