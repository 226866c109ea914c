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

type sqliteMessageRepo struct {
	db database.TxQuerier
}

func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

const messageColumns = `id, correlation_id, room, lecture_id, sender_id, sender_name, text, created_at, edited_at`

func (r *sqliteMessageRepo) Create(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, correlation_id, room, lecture_id, sender_id, sender_name, text, created_at)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		m.CorrelationID, m.Room, m.LectureID, m.SenderID, m.SenderName, m.Text, m.CreatedAt.UTC(),
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: message already stored", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	return r.getOne(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
}

func (r *sqliteMessageRepo) GetByCorrelation(ctx context.Context, room, correlationID string) (*models.Message, error) {
	return r.getOne(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE room = ? AND correlation_id = ?`,
		room, correlationID)
}

// List returns messages in timestamp order.
func (r *sqliteMessageRepo) List(ctx context.Context, f Filter) ([]models.Message, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages`+where+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

func (r *sqliteMessageRepo) Update(ctx context.Context, m *models.Message) error {
	var editedAt any
	if m.EditedAt != nil {
		editedAt = m.EditedAt.UTC()
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET text = ?, edited_at = ? WHERE id = ?`,
		m.Text, editedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return affectedOrNotFound(result)
}

func (r *sqliteMessageRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return affectedOrNotFound(result)
}

func (r *sqliteMessageRepo) getOne(ctx context.Context, query string, args ...any) (*models.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func scanMessage(s rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var editedAt sql.NullTime
	err := s.Scan(&m.ID, &m.CorrelationID, &m.Room, &m.LectureID,
		&m.SenderID, &m.SenderName, &m.Text, &m.CreatedAt, &editedAt)
	if err != nil {
		return nil, err
	}
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return m, nil
}
