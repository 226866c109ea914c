package services

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/medhanag29/rural-classroom/config"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
)

// LectureService manages lectures and hands out live-session tokens.
type LectureService interface {
	Create(ctx context.Context, userID string, req *models.CreateLectureRequest) (*models.Lecture, error)
	List(ctx context.Context, f repository.Filter) ([]models.Lecture, error)
	LiveToken(ctx context.Context, userID, displayName, lectureID string) (*models.LiveToken, error)
}

type lectureService struct {
	lectureRepo repository.LectureRepository
	courseRepo  repository.CourseRepository
	livekitCfg  config.LiveKitConfig
}

func NewLectureService(
	lectureRepo repository.LectureRepository,
	courseRepo repository.CourseRepository,
	livekitCfg config.LiveKitConfig,
) LectureService {
	return &lectureService{
		lectureRepo: lectureRepo,
		courseRepo:  courseRepo,
		livekitCfg:  livekitCfg,
	}
}

// Create adds a lecture to a course. Only the course's coordinator may.
func (s *lectureService) Create(ctx context.Context, userID string, req *models.CreateLectureRequest) (*models.Lecture, error) {
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

	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	lecture := &models.Lecture{
		CourseID:  req.CourseID,
		Name:      req.Name,
		VideoURL:  req.VideoURL,
		Date:      date,
		CreatedBy: userID,
	}
	if err := s.lectureRepo.Create(ctx, lecture); err != nil {
		return nil, err
	}
	return lecture, nil
}

func (s *lectureService) List(ctx context.Context, f repository.Filter) ([]models.Lecture, error) {
	return s.lectureRepo.List(ctx, f)
}

// LiveToken mints a LiveKit token for the lecture's live room (room name =
// lecture id). The course coordinator may publish; everyone else watches.
func (s *lectureService) LiveToken(ctx context.Context, userID, displayName, lectureID string) (*models.LiveToken, error) {
	if !s.livekitCfg.LiveEnabled() {
		return nil, fmt.Errorf("%w: live sessions are not configured", pkg.ErrBadRequest)
	}

	lecture, err := s.lectureRepo.GetByID(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	course, err := s.courseRepo.GetByID(ctx, lecture.CourseID)
	if err != nil {
		return nil, err
	}

	canPublish := course.CoordinatorID == userID
	canSubscribe := true
	canPublishData := true

	at := auth.NewAccessToken(s.livekitCfg.APIKey, s.livekitCfg.APISecret)
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           lecture.ID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}
	at.AddGrant(grant).
		SetIdentity(userID).
		SetName(displayName).
		SetValidFor(6 * time.Hour)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("failed to generate live token: %w", err)
	}

	return &models.LiveToken{
		URL:   s.livekitCfg.URL,
		Token: token,
		Room:  lecture.ID,
	}, nil
}
