package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

var MaterialFilterFields = FilterFields{
	"_id":    "id",
	"id":     "id",
	"course": "course_id",
}

// MaterialRepository stores materials and their file lists. Create writes
// two tables; callers run it inside database.WithTx.
type MaterialRepository interface {
	Create(ctx context.Context, m *models.Material) error
	List(ctx context.Context, f Filter) ([]models.Material, error)
}
