package repository

import (
	"context"
	"fmt"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
)

type sqliteAttendanceRepo struct {
	db database.TxQuerier
}

func NewSQLiteAttendanceRepo(db database.TxQuerier) AttendanceRepository {
	return &sqliteAttendanceRepo{db: db}
}

func (r *sqliteAttendanceRepo) Create(ctx context.Context, a *models.Attendance) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance (id, coordinator_id, lecture_id, course_id, class_strength, percentage)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		a.CoordinatorID, a.LectureID, a.CourseID, a.ClassStrength, a.Percentage,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}

	for _, key := range a.Entries {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO attendance_entries (attendance_id, entry_key) VALUES (?, ?)`,
			a.ID, key,
		); err != nil {
			return fmt.Errorf("failed to add attendance entry: %w", err)
		}
	}
	return nil
}

func (r *sqliteAttendanceRepo) List(ctx context.Context, f Filter) ([]models.Attendance, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, coordinator_id, lecture_id, course_id, class_strength, percentage, created_at
		FROM attendance`+where+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	out := []models.Attendance{}
	index := map[string]int{}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.ID, &a.CoordinatorID, &a.LectureID, &a.CourseID,
			&a.ClassStrength, &a.Percentage, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		a.Entries = []string{}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, a := range out {
		ids = append(ids, a.ID)
	}
	entryWhere, entryArgs := Filter{"attendance_id": ids}.Where()
	entryRows, err := r.db.QueryContext(ctx,
		`SELECT attendance_id, entry_key FROM attendance_entries`+entryWhere+` ORDER BY rowid`, entryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var id, key string
		if err := entryRows.Scan(&id, &key); err != nil {
			return nil, fmt.Errorf("failed to scan attendance entry: %w", err)
		}
		if i, ok := index[id]; ok {
			out[i].Entries = append(out[i].Entries, key)
		}
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance entries: %w", err)
	}
	return out, nil
}
