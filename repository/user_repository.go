// Package repository is the persistence layer. Each entity has an
// interface (xxx_repository.go) and a SQLite implementation (sqlite_xxx.go);
// services only see the interfaces.
//
// Implementations take a database.TxQuerier, so the same repository can be
// built on the pool or on a *sql.Tx inside database.WithTx.
package repository

import (
	"context"

	"github.com/medhanag29/rural-classroom/models"
)

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
}
