package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhanag29/rural-classroom/config"
	"github.com/medhanag29/rural-classroom/database"
	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/pkg/email"
	"github.com/medhanag29/rural-classroom/pkg/ratelimit"
	"github.com/medhanag29/rural-classroom/pkg/timeline"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/ws"
)

type recordedEvent struct {
	room  string
	event ws.Event
}

type fakeHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (h *fakeHub) BroadcastToRoom(room string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{room: room, event: event})
}

func (h *fakeHub) RoomSize(string) int { return 0 }

type fakeMailer struct {
	to  string
	sum email.AttendanceSummary
}

func (m *fakeMailer) SendAttendanceSummary(_ context.Context, to string, sum email.AttendanceSummary) error {
	m.to, m.sum = to, sum
	return nil
}

type env struct {
	db       *database.DB
	hub      *fakeHub
	mailer   *fakeMailer
	auth     AuthService
	courses  CourseService
	lectures LectureService
	messages MessageService
	doubts   DoubtService
	attend   AttendanceService
	material MaterialService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "svc.db"), database.Migrations())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := repository.NewSQLiteUserRepo(db.Conn)
	courseRepo := repository.NewSQLiteCourseRepo(db.Conn)
	lectureRepo := repository.NewSQLiteLectureRepo(db.Conn)

	limiter := ratelimit.NewMessageRateLimiter(100, time.Second, time.Second)
	t.Cleanup(limiter.Stop)

	e := &env{db: db, hub: &fakeHub{}, mailer: &fakeMailer{}}
	e.auth = NewAuthService(users, repository.NewSQLiteSessionRepo(db.Conn), "test-secret", 15, 7)
	e.courses = NewCourseService(courseRepo, users, time.Minute)
	t.Cleanup(e.courses.Close)
	e.lectures = NewLectureService(lectureRepo, courseRepo, config.LiveKitConfig{})
	e.messages = NewMessageService(repository.NewSQLiteMessageRepo(db.Conn), courseRepo, lectureRepo, e.hub, limiter)
	e.doubts = NewDoubtService(repository.NewSQLiteDoubtRepo(db.Conn), courseRepo, lectureRepo)
	e.attend = NewAttendanceService(db.Conn, repository.NewSQLiteAttendanceRepo(db.Conn), courseRepo, lectureRepo, users, e.mailer)
	e.material = NewMaterialService(db.Conn, repository.NewSQLiteMaterialRepo(db.Conn), courseRepo)
	return e
}

func (e *env) register(t *testing.T, username string, role models.Role) *AuthTokens {
	t.Helper()
	tokens, err := e.auth.Register(context.Background(), &models.CreateUserRequest{
		Username: username,
		Password: "password123",
		Email:    username + "@example.com",
		Role:     role,
	})
	require.NoError(t, err)
	return tokens
}

// students registers two students and returns their ids.
func (e *env) students(t *testing.T) (ana, ravi string) {
	t.Helper()
	return e.register(t, "ana", models.RoleStudent).User.ID, e.register(t, "ravi", models.RoleStudent).User.ID
}

// classroom seeds a coordinator, a course and one lecture.
func (e *env) classroom(t *testing.T) (coordinatorID string, course *models.Course, lecture *models.Lecture) {
	t.Helper()
	ctx := context.Background()

	coord := e.register(t, "coord", models.RoleCoordinator)
	course, err := e.courses.Create(ctx, coord.User.ID, &models.CreateCourseRequest{Name: "Physics"})
	require.NoError(t, err)
	lecture, err = e.lectures.Create(ctx, coord.User.ID, &models.CreateLectureRequest{CourseID: course.ID, Name: "Entropy"})
	require.NoError(t, err)
	return coord.User.ID, course, lecture
}

func TestAuth_Lifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reg := e.register(t, "ana", models.RoleStudent)
	assert.Empty(t, reg.User.PasswordHash)

	claims, err := e.auth.ValidateAccessToken(reg.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)

	_, err = e.auth.Login(ctx, &models.LoginRequest{Username: "ana", Password: "wrong-password"})
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)

	login, err := e.auth.Login(ctx, &models.LoginRequest{Username: "ana", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := e.auth.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	_, err = e.auth.RefreshToken(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, pkg.ErrUnauthorized, "refresh tokens rotate")

	require.NoError(t, e.auth.Logout(ctx, refreshed.RefreshToken))
	require.NoError(t, e.auth.Logout(ctx, refreshed.RefreshToken), "logout is idempotent")

	_, err = e.auth.ValidateAccessToken("garbage")
	assert.ErrorIs(t, err, pkg.ErrUnauthorized)
}

func TestAuth_DuplicateUsername(t *testing.T) {
	e := newEnv(t)
	e.register(t, "ana", models.RoleStudent)

	_, err := e.auth.Register(context.Background(), &models.CreateUserRequest{Username: "ana", Password: "password123"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestCourse_CreateAndRoomExists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	student := e.register(t, "ana", models.RoleStudent)

	_, err := e.courses.Create(ctx, student.User.ID, &models.CreateCourseRequest{Name: "Physics"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, course, _ := e.classroom(t)
	assert.True(t, e.courses.RoomExists(course.ID))
	assert.False(t, e.courses.RoomExists("missing"))
}

func TestLecture_CoordinatorOnly(t *testing.T) {
	e := newEnv(t)
	_, course, lecture := e.classroom(t)
	student := e.register(t, "ana", models.RoleStudent)

	_, err := e.lectures.Create(context.Background(), student.User.ID, &models.CreateLectureRequest{CourseID: course.ID, Name: "Heat"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)
	assert.NotEmpty(t, lecture.Date, "date defaults to today")
}

func TestLecture_LiveToken(t *testing.T) {
	e := newEnv(t)
	coordID, _, lecture := e.classroom(t)
	ctx := context.Background()

	_, err := e.lectures.LiveToken(ctx, coordID, "Coord", lecture.ID)
	assert.ErrorIs(t, err, pkg.ErrBadRequest, "disabled without credentials")

	live := NewLectureService(repository.NewSQLiteLectureRepo(e.db.Conn), repository.NewSQLiteCourseRepo(e.db.Conn), config.LiveKitConfig{
		URL: "wss://live.example.com", APIKey: "key", APISecret: "a-secret-that-is-long-enough-for-hs256",
	})

	tok, err := live.LiveToken(ctx, coordID, "Coord", lecture.ID)
	require.NoError(t, err)
	assert.Equal(t, lecture.ID, tok.Room)
	assert.Equal(t, "wss://live.example.com", tok.URL)
	assert.NotEmpty(t, tok.Token)

	_, err = live.LiveToken(ctx, coordID, "Coord", "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestMessage_CreateIsIdempotentPerCorrelation(t *testing.T) {
	e := newEnv(t)
	_, course, lecture := e.classroom(t)
	student := e.register(t, "ana", models.RoleStudent)
	ctx := context.Background()

	req := func() *models.CreateMessageRequest {
		return &models.CreateMessageRequest{CorrelationID: "corr-1", Room: course.ID, LectureID: lecture.ID, Text: " hello "}
	}
	first, err := e.messages.Create(ctx, student.User.ID, "Ana", req())
	require.NoError(t, err)
	second, err := e.messages.Create(ctx, student.User.ID, "Ana", req())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hello", first.Text)

	all, err := e.messages.List(ctx, repository.Filter{}.Eq("room", course.ID))
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, e.hub.events, "create is not broadcast")
}

func TestMessage_CorrelationOfAnotherSenderRefused(t *testing.T) {
	e := newEnv(t)
	_, course, _ := e.classroom(t)
	ana, ravi := e.students(t)
	ctx := context.Background()

	_, err := e.messages.Create(ctx, ana, "Ana", &models.CreateMessageRequest{CorrelationID: "corr-1", Room: course.ID, Text: "mine"})
	require.NoError(t, err)

	_, err = e.messages.Create(ctx, ravi, "Ravi", &models.CreateMessageRequest{CorrelationID: "corr-1", Room: course.ID, Text: "also mine"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	all, err := e.messages.List(ctx, repository.Filter{}.Eq("room", course.ID))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ana, all[0].SenderID)
}

func TestMessage_GeneratesCorrelationAndClampsFutureTimestamp(t *testing.T) {
	e := newEnv(t)
	_, course, _ := e.classroom(t)
	ana, _ := e.students(t)
	future := time.Now().Add(time.Hour)

	m, err := e.messages.Create(context.Background(), ana, "Ana", &models.CreateMessageRequest{Room: course.ID, Text: "hi", Timestamp: &future})
	require.NoError(t, err)
	assert.NotEmpty(t, m.CorrelationID)
	assert.True(t, m.CreatedAt.Before(future))
}

func TestMessage_ScopeChecks(t *testing.T) {
	e := newEnv(t)
	_, course, _ := e.classroom(t)
	ana, _ := e.students(t)
	ctx := context.Background()

	_, err := e.messages.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: "missing", Text: "hi"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = e.messages.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: course.ID, LectureID: "missing", Text: "hi"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = e.messages.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: course.ID, Text: "   "})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestMessage_UpdateDeleteBroadcast(t *testing.T) {
	e := newEnv(t)
	_, course, _ := e.classroom(t)
	ana, ravi := e.students(t)
	ctx := context.Background()

	m, err := e.messages.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: course.ID, Text: "typo"})
	require.NoError(t, err)

	_, err = e.messages.Update(ctx, ravi, m.ID, &models.UpdateMessageRequest{Text: "hijack"})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	updated, err := e.messages.Update(ctx, ana, m.ID, &models.UpdateMessageRequest{Text: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", updated.Text)
	require.NotNil(t, updated.EditedAt)

	_, err = e.messages.Update(ctx, ana, m.ID, &models.UpdateMessageRequest{Text: "fixed"})
	require.NoError(t, err)

	require.NoError(t, e.messages.Delete(ctx, ana, m.ID))
	assert.ErrorIs(t, e.messages.Delete(ctx, ana, m.ID), pkg.ErrNotFound)

	require.Len(t, e.hub.events, 2, "same-text update is not re-broadcast")
	assert.Equal(t, course.ID, e.hub.events[0].room)
	assert.Equal(t, ws.OpMessageUpdate, e.hub.events[0].event.Op)
	assert.Equal(t, ws.OpMessageDelete, e.hub.events[1].event.Op)
}

func TestMessage_RateLimited(t *testing.T) {
	e := newEnv(t)
	_, course, _ := e.classroom(t)
	ana, _ := e.students(t)
	limiter := ratelimit.NewMessageRateLimiter(1, time.Minute, time.Minute)
	t.Cleanup(limiter.Stop)
	svc := NewMessageService(
		repository.NewSQLiteMessageRepo(e.db.Conn),
		repository.NewSQLiteCourseRepo(e.db.Conn),
		repository.NewSQLiteLectureRepo(e.db.Conn),
		e.hub, limiter,
	)
	ctx := context.Background()

	_, err := svc.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: course.ID, Text: "one"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ana, "Ana", &models.CreateMessageRequest{Room: course.ID, Text: "two"})
	assert.ErrorIs(t, err, pkg.ErrTooManyReqs)
}

func TestDoubt_Create(t *testing.T) {
	e := newEnv(t)
	_, course, lecture := e.classroom(t)
	ana, _ := e.students(t)
	ctx := context.Background()

	d, err := e.doubts.Create(ctx, ana, &models.CreateDoubtRequest{
		Room: course.ID, LectureID: lecture.ID, Doubts: timeline.Numeric(3), Time: timeline.Numeric(12.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, 12.5, d.Time)

	_, err = e.doubts.Create(ctx, ana, &models.CreateDoubtRequest{
		Room: course.ID, LectureID: lecture.ID, Doubts: timeline.Numeric(-1), Time: timeline.Numeric(1),
	})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestDoubt_EventIDs(t *testing.T) {
	e := newEnv(t)
	_, course, lecture := e.classroom(t)
	ana, ravi := e.students(t)
	ctx := context.Background()

	spike := func(eventID string) *models.CreateDoubtRequest {
		return &models.CreateDoubtRequest{
			EventID: eventID, Room: course.ID, LectureID: lecture.ID, Doubts: timeline.Numeric(1), Time: timeline.Numeric(5),
		}
	}

	first, err := e.doubts.Create(ctx, ana, spike("ev-1"))
	require.NoError(t, err)
	retried, err := e.doubts.Create(ctx, ana, spike("ev-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, retried.ID)

	_, err = e.doubts.Create(ctx, ravi, spike("ev-2"))
	require.NoError(t, err, "same count and time from another student is a second spike")

	_, err = e.doubts.Create(ctx, ravi, spike("ev-1"))
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	all, err := e.doubts.List(ctx, repository.Filter{}.Eq("lecture_id", lecture.ID))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ev-1", all[0].EventID)
	assert.Equal(t, "ev-2", all[1].EventID)
}

func TestAttendance_Create(t *testing.T) {
	e := newEnv(t)
	coordID, course, lecture := e.classroom(t)
	ctx := context.Background()

	_, err := e.attend.Create(ctx, coordID, &models.CreateAttendanceRequest{
		LectureID: lecture.ID, CourseID: course.ID, Present: []int{1}, ClassStrength: 0,
	})
	assert.ErrorIs(t, err, pkg.ErrDivisionGuard)

	_, err = e.attend.Create(ctx, coordID, &models.CreateAttendanceRequest{
		LectureID: lecture.ID, CourseID: course.ID, Present: []int{9}, ClassStrength: 4,
	})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	_, err = e.attend.Create(ctx, "someone-else", &models.CreateAttendanceRequest{
		LectureID: lecture.ID, CourseID: course.ID, Present: []int{1}, ClassStrength: 4,
	})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	rec, err := e.attend.Create(ctx, coordID, &models.CreateAttendanceRequest{
		LectureID: lecture.ID, CourseID: course.ID, Present: []int{3, 1, 3}, ClassStrength: 4, NotifyEmail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{coordID + "_1", coordID + "_3"}, rec.Entries)
	assert.InDelta(t, 50.0, rec.Percentage, 1e-9)

	assert.Equal(t, "coord@example.com", e.mailer.to)
	assert.Equal(t, []int{1, 3}, e.mailer.sum.Present)
	assert.Equal(t, "Entropy", e.mailer.sum.LectureName)

	list, err := e.attend.List(ctx, repository.Filter{}.Eq("lecture_id", lecture.ID))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMaterial_Create(t *testing.T) {
	e := newEnv(t)
	coordID, course, _ := e.classroom(t)
	ctx := context.Background()

	m, err := e.material.Create(ctx, coordID, &models.CreateMaterialRequest{
		CourseID: course.ID,
		Name:     "Week 1",
		Files:    []string{"http://localhost:9090/api/uploads/materials-file/a.pdf"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)

	_, err = e.material.Create(ctx, coordID, &models.CreateMaterialRequest{CourseID: course.ID, Name: "Empty"})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	list, err := e.material.List(ctx, repository.Filter{}.Eq("course_id", course.ID))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Files, 1)
}

type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

func fileHeader(name, contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: name, Header: h, Size: size}
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	svc := NewUploadService(dir, "http://localhost:9090/", 16, []string{"materials-file", "images"})
	ctx := context.Background()
	body := []byte("%PDF-1.4 tiny")

	res, err := svc.Upload(ctx, "materials-file", memFile{bytes.NewReader(body)}, fileHeader("../notes week1.pdf", "application/pdf", int64(len(body))))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "http://localhost:9090/api/uploads/materials-file/"))
	assert.True(t, strings.HasSuffix(res.URL, "_notes_week1.pdf"))

	stored, err := os.ReadFile(filepath.Join(dir, "materials-file", filepath.Base(res.URL)))
	require.NoError(t, err)
	assert.Equal(t, body, stored)

	_, err = svc.Upload(ctx, "secrets", memFile{bytes.NewReader(body)}, fileHeader("a.pdf", "application/pdf", 4))
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	_, err = svc.Upload(ctx, "images", memFile{bytes.NewReader(body)}, fileHeader("a.pdf", "application/pdf", 4))
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	big := bytes.Repeat([]byte("x"), 32)
	_, err = svc.Upload(ctx, "materials-file", memFile{bytes.NewReader(big)}, fileHeader("big.bin", "", 4))
	assert.ErrorIs(t, err, pkg.ErrBadRequest, "size is enforced on the stream too")
}
