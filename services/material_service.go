package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
)

// MaterialService manages study materials. Files are uploaded first
// (UploadService); a material then groups their URLs under a name.
type MaterialService interface {
	Create(ctx context.Context, userID string, req *models.CreateMaterialRequest) (*models.Material, error)
	List(ctx context.Context, f repository.Filter) ([]models.Material, error)
}

type materialService struct {
	db           *sql.DB // material + file rows are written in one transaction
	materialRepo repository.MaterialRepository
	courseRepo   repository.CourseRepository
}

func NewMaterialService(
	db *sql.DB,
	materialRepo repository.MaterialRepository,
	courseRepo repository.CourseRepository,
) MaterialService {
	return &materialService{
		db:           db,
		materialRepo: materialRepo,
		courseRepo:   courseRepo,
	}
}

func (s *materialService) Create(ctx context.Context, userID string, req *models.CreateMaterialRequest) (*models.Material, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course.CoordinatorID != userID {
		return nil, fmt.Errorf("%w: not the coordinator of this course", pkg.ErrForbidden)
	}

	material := &models.Material{
		CourseID:  req.CourseID,
		Name:      req.Name,
		Files:     req.Files,
		CreatedBy: userID,
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return repository.NewSQLiteMaterialRepo(tx).Create(ctx, material)
	})
	if err != nil {
		return nil, err
	}
	return material, nil
}

func (s *materialService) List(ctx context.Context, f repository.Filter) ([]models.Material, error) {
	return s.materialRepo.List(ctx, f)
}
