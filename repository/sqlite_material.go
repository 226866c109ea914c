package repository

import (
	"context"
	"fmt"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
)

type sqliteMaterialRepo struct {
	db database.TxQuerier
}

func NewSQLiteMaterialRepo(db database.TxQuerier) MaterialRepository {
	return &sqliteMaterialRepo{db: db}
}

func (r *sqliteMaterialRepo) Create(ctx context.Context, m *models.Material) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO materials (id, course_id, name, created_by)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`,
		m.CourseID, m.Name, m.CreatedBy,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}

	for i, url := range m.Files {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO material_files (material_id, position, url) VALUES (?, ?, ?)`,
			m.ID, i, url,
		); err != nil {
			return fmt.Errorf("failed to add material file: %w", err)
		}
	}
	return nil
}

func (r *sqliteMaterialRepo) List(ctx context.Context, f Filter) ([]models.Material, error) {
	where, args := f.Where()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, name, created_by, created_at
		FROM materials`+where+` ORDER BY created_at, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	materials := []models.Material{}
	index := map[string]int{}
	for rows.Next() {
		var m models.Material
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Name, &m.CreatedBy, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan material row: %w", err)
		}
		m.Files = []string{}
		index[m.ID] = len(materials)
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating material rows: %w", err)
	}
	rows.Close()

	if len(materials) == 0 {
		return materials, nil
	}

	ids := make([]string, 0, len(materials))
	for _, m := range materials {
		ids = append(ids, m.ID)
	}
	fileWhere, fileArgs := Filter{"material_id": ids}.Where()
	fileRows, err := r.db.QueryContext(ctx,
		`SELECT material_id, url FROM material_files`+fileWhere+` ORDER BY material_id, position`, fileArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list material files: %w", err)
	}
	defer fileRows.Close()

	for fileRows.Next() {
		var id, url string
		if err := fileRows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("failed to scan material file row: %w", err)
		}
		if i, ok := index[id]; ok {
			materials[i].Files = append(materials[i].Files, url)
		}
	}
	if err := fileRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating material file rows: %w", err)
	}
	return materials, nil
}
