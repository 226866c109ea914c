package main

import (
	"net/http"
	"path"
	"strings"

	"github.com/medhanag29/rural-classroom/middleware"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/services"
)

// initRoutes registers every endpoint on mux using Go 1.22 method patterns.
func initRoutes(
	mux *http.ServeMux,
	h *Handlers,
	authService services.AuthService,
	userRepo repository.UserRepository,
	uploadDir string,
) {
	authMw := middleware.NewAuthMiddleware(authService, userRepo)
	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}

	mux.HandleFunc("GET /api/health", h.Health.Health)

	// ─── Auth ───
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.Handle("GET /api/users/me", auth(h.Auth.Me))

	// ─── Store collections ───
	mux.Handle("GET /api/courses", auth(h.Course.List))
	mux.Handle("POST /api/courses", auth(h.Course.Create))

	mux.Handle("GET /api/lectures", auth(h.Lecture.List))
	mux.Handle("POST /api/lectures", auth(h.Lecture.Create))
	mux.Handle("POST /api/lectures/{id}/live-token", auth(h.Lecture.LiveToken))

	mux.Handle("GET /api/materials", auth(h.Material.List))
	mux.Handle("POST /api/materials", auth(h.Material.Create))

	mux.Handle("GET /api/messages", auth(h.Message.List))
	mux.Handle("POST /api/messages", auth(h.Message.Create))
	mux.Handle("PATCH /api/messages/{id}", auth(h.Message.Update))
	mux.Handle("DELETE /api/messages/{id}", auth(h.Message.Delete))

	mux.Handle("GET /api/doubts", auth(h.Doubt.List))
	mux.Handle("POST /api/doubts", auth(h.Doubt.Create))

	mux.Handle("GET /api/attendance", auth(h.Attendance.List))
	mux.Handle("POST /api/attendance", auth(h.Attendance.Create))

	// ─── Blobs ───
	mux.Handle("POST /api/upload", auth(h.Upload.Upload))
	mux.Handle("GET /api/uploads/", uploadsHandler(uploadDir))

	// ─── Room transport ───
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}

// uploadsHandler serves /api/uploads/{bucket}/{file}. Anything deeper than
// bucket/file, or containing backslashes or dot segments, is a 404.
func uploadsHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.StripPrefix("/api/uploads/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if strings.Contains(p, "\\") || strings.Count(p, "/") != 1 || path.Clean(p) != p || strings.HasPrefix(p, ".") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	}))
}
