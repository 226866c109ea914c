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

type sqliteLectureRepo struct {
	db database.TxQuerier
}

func NewSQLiteLectureRepo(db database.TxQuerier) LectureRepository {
	return &sqliteLectureRepo{db: db}
}

const lectureColumns = `id, course_id, name, video_url, lecture_date, created_by, created_at`

func (r *sqliteLectureRepo) Create(ctx context.Context, l *models.Lecture) error {
	query := `
		INSERT INTO lectures (id, course_id, name, video_url, lecture_date, created_by)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		l.CourseID, l.Name, l.VideoURL, l.Date, l.CreatedBy,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create lecture: %w", err)
	}
	return nil
}

func (r *sqliteLectureRepo) GetByID(ctx context.Context, id string) (*models.Lecture, error) {
	l := &models.Lecture{}
	err := r.db.QueryRowContext(ctx, `SELECT `+lectureColumns+` FROM lectures WHERE id = ?`, id).
		Scan(&l.ID, &l.CourseID, &l.Name, &l.VideoURL, &l.Date, &l.CreatedBy, &l.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lecture: %w", err)
	}
	return l, nil
}

func (r *sqliteLectureRepo) List(ctx context.Context, f Filter) ([]models.Lecture, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lectureColumns+` FROM lectures`+where+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lectures: %w", err)
	}
	defer rows.Close()

	lectures := []models.Lecture{}
	for rows.Next() {
		var l models.Lecture
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Name, &l.VideoURL, &l.Date, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lecture row: %w", err)
		}
		lectures = append(lectures, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lecture rows: %w", err)
	}
	return lectures, nil
}
