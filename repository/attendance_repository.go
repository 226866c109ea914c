package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

var AttendanceFilterFields = FilterFields{
	"_id":         "id",
	"id":          "id",
	"lecture":     "lecture_id",
	"course":      "course_id",
	"coordinator": "coordinator_id",
}

// AttendanceRepository stores finalized attendance. Create writes the
// header row and its entries; callers run it inside database.WithTx.
type AttendanceRepository interface {
	Create(ctx context.Context, a *models.Attendance) error
	List(ctx context.Context, f Filter) ([]models.Attendance, error)
}
