package main

import (
	"database/sql"

	"github.com/medhanag29/rural-classroom/config"
	"github.com/medhanag29/rural-classroom/handlers"
	"github.com/medhanag29/rural-classroom/ws"
)

// Handlers holds every HTTP handler instance.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Course     *handlers.CourseHandler
	Lecture    *handlers.LectureHandler
	Material   *handlers.MaterialHandler
	Message    *handlers.MessageHandler
	Doubt      *handlers.DoubtHandler
	Attendance *handlers.AttendanceHandler
	Upload     *handlers.UploadHandler
	Health     *handlers.HealthHandler
	WS         *ws.Handler
}

func initHandlers(db *sql.DB, svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:       handlers.NewAuthHandler(svcs.Auth, limiters.Login),
		Course:     handlers.NewCourseHandler(svcs.Course),
		Lecture:    handlers.NewLectureHandler(svcs.Lecture),
		Material:   handlers.NewMaterialHandler(svcs.Material),
		Message:    handlers.NewMessageHandler(svcs.Message),
		Doubt:      handlers.NewDoubtHandler(svcs.Doubt),
		Attendance: handlers.NewAttendanceHandler(svcs.Attendance),
		Upload:     handlers.NewUploadHandler(svcs.Upload, cfg.Upload.MaxSize),
		Health:     handlers.NewHealthHandler(db),
		WS:         ws.NewHandler(hub, svcs.Auth, cfg.CORS.AllowedOrigins),
	}
}
