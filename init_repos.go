// Package main wires the classroom server together: config, database,
// repositories, services, handlers, routes and the room hub.
package main

import (
	"database/sql"

	"github.com/medhanag29/rural-classroom/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	User       repository.UserRepository
	Session    repository.SessionRepository
	Course     repository.CourseRepository
	Lecture    repository.LectureRepository
	Material   repository.MaterialRepository
	Message    repository.MessageRepository
	Doubt      repository.DoubtRepository
	Attendance repository.AttendanceRepository
}

// initRepositories builds all repositories on the shared pool.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		User:       repository.NewSQLiteUserRepo(conn),
		Session:    repository.NewSQLiteSessionRepo(conn),
		Course:     repository.NewSQLiteCourseRepo(conn),
		Lecture:    repository.NewSQLiteLectureRepo(conn),
		Material:   repository.NewSQLiteMaterialRepo(conn),
		Message:    repository.NewSQLiteMessageRepo(conn),
		Doubt:      repository.NewSQLiteDoubtRepo(conn),
		Attendance: repository.NewSQLiteAttendanceRepo(conn),
	}
}
