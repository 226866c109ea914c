package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/timeline"
	"github.com/medhanag29/rural-classroom/repository"
)

// DoubtService persists doubt spikes. Like messages, the spike was already
// relayed to the room by its sender.
type DoubtService interface {
	Create(ctx context.Context, userID string, req *models.CreateDoubtRequest) (*models.Doubt, error)
	List(ctx context.Context, f repository.Filter) ([]models.Doubt, error)
}

type doubtService struct {
	doubtRepo   repository.DoubtRepository
	courseRepo  repository.CourseRepository
	lectureRepo repository.LectureRepository
}

func NewDoubtService(
	doubtRepo repository.DoubtRepository,
	courseRepo repository.CourseRepository,
	lectureRepo repository.LectureRepository,
) DoubtService {
	return &doubtService{
		doubtRepo:   doubtRepo,
		courseRepo:  courseRepo,
		lectureRepo: lectureRepo,
	}
}

// Create stores a spike. A retried create with the same event id returns
// the stored record; an event id already used by someone else is refused.
func (s *doubtService) Create(ctx context.Context, userID string, req *models.CreateDoubtRequest) (*models.Doubt, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if req.EventID != "" {
		existing, err := s.ownDoubt(ctx, userID, req.Room, req.EventID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pkg.ErrNotFound) {
			return nil, err
		}
	}

	ev, ok := timeline.Record{Doubts: req.Doubts, Time: req.Time}.Event()
	if !ok {
		return nil, fmt.Errorf("%w: doubts and time must be non-negative numbers", pkg.ErrBadRequest)
	}

	if err := checkRoomScope(ctx, s.courseRepo, s.lectureRepo, req.Room, req.LectureID); err != nil {
		return nil, err
	}

	doubt := &models.Doubt{
		EventID:   req.EventID,
		Room:      req.Room,
		LectureID: req.LectureID,
		SenderID:  userID,
		Count:     ev.Count,
		Time:      ev.Time,
	}
	if err := s.doubtRepo.Create(ctx, doubt); err != nil {
		if errors.Is(err, pkg.ErrAlreadyExists) {
			return s.ownDoubt(ctx, userID, req.Room, req.EventID)
		}
		return nil, err
	}
	return doubt, nil
}

func (s *doubtService) ownDoubt(ctx context.Context, userID, room, eventID string) (*models.Doubt, error) {
	existing, err := s.doubtRepo.GetByEvent(ctx, room, eventID)
	if err != nil {
		return nil, err
	}
	if existing.SenderID != userID {
		return nil, fmt.Errorf("%w: event id is already in use", pkg.ErrAlreadyExists)
	}
	return existing, nil
}

func (s *doubtService) List(ctx context.Context, f repository.Filter) ([]models.Doubt, error) {
	return s.doubtRepo.List(ctx, f)
}
