package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
)

type sqliteCourseRepo struct {
	db database.TxQuerier
}

// NewSQLiteCourseRepo returns the SQLite CourseRepository.
func NewSQLiteCourseRepo(db database.TxQuerier) CourseRepository {
	return &sqliteCourseRepo{db: db}
}

func (r *sqliteCourseRepo) Create(ctx context.Context, course *models.Course) error {
	query := `
		INSERT INTO courses (id, name, description, coordinator_id)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		course.Name, course.Description, course.CoordinatorID,
	).Scan(&course.ID, &course.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

func (r *sqliteCourseRepo) GetByID(ctx context.Context, id string) (*models.Course, error) {
	c := &models.Course{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, coordinator_id, created_at
		FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CoordinatorID, &c.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return c, nil
}

func (r *sqliteCourseRepo) List(ctx context.Context, f Filter) ([]models.Course, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, coordinator_id, created_at
		FROM courses`+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CoordinatorID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course rows: %w", err)
	}
	return courses, nil
}
