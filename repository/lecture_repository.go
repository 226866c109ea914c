package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

var LectureFilterFields = FilterFields{
	"_id":    "id",
	"id":     "id",
	"course": "course_id",
}

// LectureRepository stores lectures. List returns oldest first, so the
// latest lecture of a course is the last element.
type LectureRepository interface {
	Create(ctx context.Context, lecture *models.Lecture) error
	GetByID(ctx context.Context, id string) (*models.Lecture, error)
	List(ctx context.Context, f Filter) ([]models.Lecture, error)
}
