package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/attendance"
	"github.com/medhanag29/rural-classroom/pkg/email"
	"github.com/medhanag29/rural-classroom/repository"
)

// AttendanceService finalizes lecture attendance.
type AttendanceService interface {
	Create(ctx context.Context, userID string, req *models.CreateAttendanceRequest) (*models.Attendance, error)
	List(ctx context.Context, f repository.Filter) ([]models.Attendance, error)
}

type attendanceService struct {
	db             *sql.DB
	attendanceRepo repository.AttendanceRepository
	courseRepo     repository.CourseRepository
	lectureRepo    repository.LectureRepository
	userRepo       repository.UserRepository
	mailer         email.Sender // nil when email is not configured
}

func NewAttendanceService(
	db *sql.DB,
	attendanceRepo repository.AttendanceRepository,
	courseRepo repository.CourseRepository,
	lectureRepo repository.LectureRepository,
	userRepo repository.UserRepository,
	mailer email.Sender,
) AttendanceService {
	return &attendanceService{
		db:             db,
		attendanceRepo: attendanceRepo,
		courseRepo:     courseRepo,
		lectureRepo:    lectureRepo,
		userRepo:       userRepo,
		mailer:         mailer,
	}
}

// Create records the present roll numbers of a lecture as
// "<coordinator>_<roll>" keys together with the percentage. Only the
// course's coordinator may finalize, and class strength must be positive.
func (s *attendanceService) Create(ctx context.Context, userID string, req *models.CreateAttendanceRequest) (*models.Attendance, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	present := attendance.Resolve(nil, req.Present)
	percentage, err := attendance.Finalize(present, req.ClassStrength)
	if err != nil {
		return nil, err
	}
	if n := len(present); n > 0 && present[n-1] > req.ClassStrength {
		return nil, fmt.Errorf("%w: roll %d is above class strength %d", pkg.ErrValidation, present[n-1], req.ClassStrength)
	}

	course, err := s.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if course.CoordinatorID != userID {
		return nil, fmt.Errorf("%w: not the coordinator of this course", pkg.ErrForbidden)
	}
	lecture, err := s.lectureRepo.GetByID(ctx, req.LectureID)
	if err != nil {
		return nil, err
	}
	if lecture.CourseID != course.ID {
		return nil, fmt.Errorf("%w: lecture does not belong to this course", pkg.ErrBadRequest)
	}

	record := &models.Attendance{
		CoordinatorID: userID,
		LectureID:     lecture.ID,
		CourseID:      course.ID,
		Entries:       attendance.Keys(userID, present),
		ClassStrength: req.ClassStrength,
		Percentage:    percentage,
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return repository.NewSQLiteAttendanceRepo(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if req.NotifyEmail {
		s.sendSummary(ctx, userID, course, lecture, present, record)
	}
	return record, nil
}

func (s *attendanceService) List(ctx context.Context, f repository.Filter) ([]models.Attendance, error) {
	return s.attendanceRepo.List(ctx, f)
}

// sendSummary mails the coordinator. Failures are logged; the attendance is
// already stored.
func (s *attendanceService) sendSummary(ctx context.Context, userID string, course *models.Course, lecture *models.Lecture, present []int, record *models.Attendance) {
	if s.mailer == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[attendance] summary mail skipped, user lookup failed: %v", err)
		return
	}
	if user.Email == nil || *user.Email == "" {
		return
	}

	mailCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = s.mailer.SendAttendanceSummary(mailCtx, *user.Email, email.AttendanceSummary{
		CourseName:    course.Name,
		LectureName:   lecture.Name,
		Present:       present,
		ClassStrength: record.ClassStrength,
		Percentage:    record.Percentage,
	})
	if err != nil {
		log.Printf("[attendance] summary mail to user=%s failed: %v", userID, err)
	}
}
