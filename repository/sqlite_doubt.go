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

const doubtColumns = `id, event_id, room, lecture_id, sender_id, count, time, created_at`

type sqliteDoubtRepo struct {
	db database.TxQuerier
}

func NewSQLiteDoubtRepo(db database.TxQuerier) DoubtRepository {
	return &sqliteDoubtRepo{db: db}
}

func (r *sqliteDoubtRepo) Create(ctx context.Context, d *models.Doubt) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO doubts (id, event_id, room, lecture_id, sender_id, count, time)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		d.EventID, d.Room, d.LectureID, d.SenderID, d.Count, d.Time,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: doubt already stored", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create doubt: %w", err)
	}
	return nil
}

func (r *sqliteDoubtRepo) GetByEvent(ctx context.Context, room, eventID string) (*models.Doubt, error) {
	d, err := scanDoubt(r.db.QueryRowContext(ctx,
		`SELECT `+doubtColumns+` FROM doubts WHERE room = ? AND event_id = ?`, room, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doubt: %w", err)
	}
	return d, nil
}

func (r *sqliteDoubtRepo) List(ctx context.Context, f Filter) ([]models.Doubt, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+doubtColumns+`
		FROM doubts`+where+` ORDER BY time, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doubts: %w", err)
	}
	defer rows.Close()

	doubts := []models.Doubt{}
	for rows.Next() {
		d, err := scanDoubt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doubt row: %w", err)
		}
		doubts = append(doubts, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating doubt rows: %w", err)
	}
	return doubts, nil
}

func scanDoubt(s rowScanner) (*models.Doubt, error) {
	d := &models.Doubt{}
	if err := s.Scan(&d.ID, &d.EventID, &d.Room, &d.LectureID, &d.SenderID, &d.Count, &d.Time, &d.CreatedAt); err != nil {
		return nil, err
	}
	return d, nil
}
