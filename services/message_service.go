package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/ratelimit"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/ws"
)

// maxClockSkew bounds how far in the future a client timestamp may be.
const maxClockSkew = time.Minute

// MessageService persists chat messages.
//
// Create does not broadcast: the sender already emitted the line to the
// room. Edits and deletes only happen here, so they are published.
type MessageService interface {
	Create(ctx context.Context, userID, senderName string, req *models.CreateMessageRequest) (*models.Message, error)
	List(ctx context.Context, f repository.Filter) ([]models.Message, error)
	Update(ctx context.Context, userID, id string, req *models.UpdateMessageRequest) (*models.Message, error)
	Delete(ctx context.Context, userID, id string) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	courseRepo  repository.CourseRepository
	lectureRepo repository.LectureRepository
	hub         ws.EventPublisher
	limiter     *ratelimit.MessageRateLimiter
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	courseRepo repository.CourseRepository,
	lectureRepo repository.LectureRepository,
	hub ws.EventPublisher,
	limiter *ratelimit.MessageRateLimiter,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		courseRepo:  courseRepo,
		lectureRepo: lectureRepo,
		hub:         hub,
		limiter:     limiter,
	}
}

// Create stores a message. A retried create with the same correlation id
// returns the stored record instead of a duplicate. A correlation id that
// another user already used in the room is refused with ErrAlreadyExists.
func (s *messageService) Create(ctx context.Context, userID, senderName string, req *models.CreateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if req.CorrelationID != "" {
		existing, err := s.ownMessage(ctx, userID, req.Room, req.CorrelationID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pkg.ErrNotFound) {
			return nil, err
		}
	}

	if s.limiter != nil && !s.limiter.Allow(userID) {
		return nil, fmt.Errorf("%w: %s", pkg.ErrTooManyReqs,
			ratelimit.FormatRetryMessage(s.limiter.CooldownSeconds(userID)))
	}

	if err := s.checkScope(ctx, req.Room, req.LectureID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	createdAt := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() && req.Timestamp.Before(now.Add(maxClockSkew)) {
		createdAt = req.Timestamp.UTC()
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	message := &models.Message{
		CorrelationID: correlationID,
		Room:          req.Room,
		LectureID:     req.LectureID,
		SenderID:      userID,
		SenderName:    senderName,
		Text:          req.Text,
		CreatedAt:     createdAt,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		if errors.Is(err, pkg.ErrAlreadyExists) {
			// lost a race against a concurrent retry
			return s.ownMessage(ctx, userID, req.Room, correlationID)
		}
		return nil, err
	}
	return message, nil
}

func (s *messageService) ownMessage(ctx context.Context, userID, room, correlationID string) (*models.Message, error) {
	existing, err := s.messageRepo.GetByCorrelation(ctx, room, correlationID)
	if err != nil {
		return nil, err
	}
	if existing.SenderID != userID {
		return nil, fmt.Errorf("%w: correlation id is already in use", pkg.ErrAlreadyExists)
	}
	return existing, nil
}

func (s *messageService) List(ctx context.Context, f repository.Filter) ([]models.Message, error) {
	return s.messageRepo.List(ctx, f)
}

// Update edits the text of the caller's own message and publishes
// message_update to the room. Re-sending the same text is a no-op.
func (s *messageService) Update(ctx context.Context, userID, id string, req *models.UpdateMessageRequest) (*models.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	message, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID {
		return nil, fmt.Errorf("%w: you can only edit your own messages", pkg.ErrForbidden)
	}
	if message.Text == req.Text {
		return message, nil
	}

	now := time.Now().UTC()
	message.Text = req.Text
	message.EditedAt = &now
	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(message.Room, ws.Event{
		Op:   ws.OpMessageUpdate,
		Data: toMessageData(message),
	})
	return message, nil
}

// Delete removes the caller's own message and publishes message_delete.
func (s *messageService) Delete(ctx context.Context, userID, id string) error {
	message, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if message.SenderID != userID {
		return fmt.Errorf("%w: you can only delete your own messages", pkg.ErrForbidden)
	}

	if err := s.messageRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.hub.BroadcastToRoom(message.Room, ws.Event{
		Op: ws.OpMessageDelete,
		Data: ws.MessageDeleteData{
			ID:            message.ID,
			CorrelationID: message.CorrelationID,
			Room:          message.Room,
			LectureID:     message.LectureID,
		},
	})
	return nil
}

// checkScope verifies the room is a course and the lecture, when given,
// belongs to it.
func (s *messageService) checkScope(ctx context.Context, room, lectureID string) error {
	return checkRoomScope(ctx, s.courseRepo, s.lectureRepo, room, lectureID)
}

func checkRoomScope(ctx context.Context, courseRepo repository.CourseRepository, lectureRepo repository.LectureRepository, room, lectureID string) error {
	if _, err := courseRepo.GetByID(ctx, room); err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: unknown room", pkg.ErrBadRequest)
		}
		return err
	}
	if lectureID == "" {
		return nil
	}

	lecture, err := lectureRepo.GetByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return fmt.Errorf("%w: unknown lecture", pkg.ErrBadRequest)
		}
		return err
	}
	if lecture.CourseID != room {
		return fmt.Errorf("%w: lecture does not belong to this room", pkg.ErrBadRequest)
	}
	return nil
}

func toMessageData(m *models.Message) ws.MessageData {
	return ws.MessageData{
		ID:            m.ID,
		CorrelationID: m.CorrelationID,
		Room:          m.Room,
		LectureID:     m.LectureID,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		Text:          m.Text,
		Timestamp:     m.CreatedAt,
		EditedAt:      m.EditedAt,
	}
}
