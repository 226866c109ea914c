package main

import (
	"database/sql"
	"log"

	"github.com/medhanag29/rural-classroom/config"
	"github.com/medhanag29/rural-classroom/pkg/email"
	"github.com/medhanag29/rural-classroom/pkg/ratelimit"
	"github.com/medhanag29/rural-classroom/services"
	"github.com/medhanag29/rural-classroom/ws"
)

// Services holds every service instance.
type Services struct {
	Auth       services.AuthService
	Course     services.CourseService
	Lecture    services.LectureService
	Material   services.MaterialService
	Message    services.MessageService
	Doubt      services.DoubtService
	Attendance services.AttendanceService
	Upload     services.UploadService
}

// RateLimiters are shared between handlers, services and the hub. HTTP
// creates and socket relays get separate message limiters because a client
// sends every line through both.
type RateLimiters struct {
	Login        *ratelimit.LoginRateLimiter
	Message      *ratelimit.MessageRateLimiter
	MessageRelay *ratelimit.MessageRateLimiter
}

// Stop ends the limiter cleanup goroutines.
func (l *RateLimiters) Stop() {
	l.Login.Stop()
	l.Message.Stop()
	l.MessageRelay.Stop()
}

func initServices(db *sql.DB, repos *Repositories, hub ws.EventPublisher, cfg *config.Config) (*Services, *RateLimiters) {
	rl := cfg.RateLimit
	limiters := &RateLimiters{
		Login:        ratelimit.NewLoginRateLimiter(rl.LoginAttempts, rl.LoginWindow),
		Message:      ratelimit.NewMessageRateLimiter(rl.MessageMax, rl.MessageWindow, rl.MessageCooldown),
		MessageRelay: ratelimit.NewMessageRateLimiter(rl.MessageMax, rl.MessageWindow, rl.MessageCooldown),
	}

	var mailer email.Sender
	if cfg.Email.ResendAPIKey != "" {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, cfg.Email.AppName)
		log.Println("[main] attendance summary email enabled (resend)")
	} else {
		log.Println("[main] RESEND_API_KEY not set, attendance summary email disabled")
	}

	if !cfg.LiveKit.LiveEnabled() {
		log.Println("[main] LIVEKIT_API_KEY not set, live lecture tokens disabled")
	}

	svcs := &Services{
		Auth: services.NewAuthService(
			repos.User,
			repos.Session,
			cfg.JWT.Secret,
			cfg.JWT.AccessTokenExpiry,
			cfg.JWT.RefreshTokenExpiry,
		),
		Course:   services.NewCourseService(repos.Course, repos.User, cfg.Rooms.CacheTTL),
		Lecture:  services.NewLectureService(repos.Lecture, repos.Course, cfg.LiveKit),
		Material: services.NewMaterialService(db, repos.Material, repos.Course),
		Message: services.NewMessageService(
			repos.Message,
			repos.Course,
			repos.Lecture,
			hub,
			limiters.Message,
		),
		Doubt: services.NewDoubtService(repos.Doubt, repos.Course, repos.Lecture),
		Attendance: services.NewAttendanceService(
			db,
			repos.Attendance,
			repos.Course,
			repos.Lecture,
			repos.User,
			mailer,
		),
		Upload: services.NewUploadService(
			cfg.Upload.Dir,
			cfg.Server.PublicURL,
			cfg.Upload.MaxSize,
			cfg.Upload.Buckets,
		),
	}

	return svcs, limiters
}
