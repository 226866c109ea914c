package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/cache"
	"github.com/medhanag29/rural-classroom/repository"
)

// CourseService manages courses. A course id doubles as the name of its chat
// room, so the service also answers "does this room exist" for the hub.
type CourseService interface {
	Create(ctx context.Context, userID string, req *models.CreateCourseRequest) (*models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, f repository.Filter) ([]models.Course, error)
	RoomExists(room string) bool
	Close()
}

type courseService struct {
	courseRepo repository.CourseRepository
	userRepo   repository.UserRepository
	rooms      *cache.TTLCache[string, bool]
}

func NewCourseService(
	courseRepo repository.CourseRepository,
	userRepo repository.UserRepository,
	roomTTL time.Duration,
) CourseService {
	return &courseService{
		courseRepo: courseRepo,
		userRepo:   userRepo,
		rooms:      cache.New[string, bool](roomTTL, roomTTL),
	}
}

func (s *courseService) Create(ctx context.Context, userID string, req *models.CreateCourseRequest) (*models.Course, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if err := requireCoordinator(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:          req.Name,
		Description:   req.Description,
		CoordinatorID: userID,
	}
	if err := s.courseRepo.Create(ctx, course); err != nil {
		return nil, err
	}

	s.rooms.Set(course.ID, true)
	return course, nil
}

func (s *courseService) GetByID(ctx context.Context, id string) (*models.Course, error) {
	return s.courseRepo.GetByID(ctx, id)
}

func (s *courseService) List(ctx context.Context, f repository.Filter) ([]models.Course, error) {
	return s.courseRepo.List(ctx, f)
}

// RoomExists is the hub's join check. Both hits and misses are cached for
// the room TTL; Create marks new rooms immediately.
func (s *courseService) RoomExists(room string) bool {
	if ok, cached := s.rooms.Get(room); cached {
		return ok
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.courseRepo.GetByID(ctx, room)
	switch {
	case err == nil:
		s.rooms.Set(room, true)
		return true
	case errors.Is(err, pkg.ErrNotFound):
		s.rooms.Set(room, false)
		return false
	default:
		// not cached: a database hiccup should not lock a room out for a TTL
		log.Printf("[course] room lookup failed room=%s: %v", room, err)
		return false
	}
}

func (s *courseService) Close() {
	s.rooms.Close()
}

// requireCoordinator fails with ErrForbidden unless userID is a coordinator.
func requireCoordinator(ctx context.Context, userRepo repository.UserRepository, userID string) error {
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: unknown user", pkg.ErrUnauthorized)
		}
		return err
	}
	if !user.IsCoordinator() {
		return fmt.Errorf("%w: only coordinators can do this", pkg.ErrForbidden)
	}
	return nil
}
