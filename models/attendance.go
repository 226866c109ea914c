package models

import "time"

// Attendance is the finalized presence of one lecture. Entries are
// "<coordinator>_<roll>" keys.
type Attendance struct {
	ID            string    `json:"id"`
	CoordinatorID string    `json:"coordinator_id"`
	LectureID     string    `json:"lecture_id"`
	CourseID      string    `json:"course_id"`
	Entries       []string  `json:"attendance"`
	ClassStrength int       `json:"class_strength"`
	Percentage    float64   `json:"percentage"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateAttendanceRequest struct {
	LectureID     string `json:"lecture_id" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
	Present       []int  `json:"present" validate:"dive,min=1"`
	ClassStrength int    `json:"class_strength" validate:"min=0"`
	NotifyEmail   bool   `json:"notify_email"`
}

// Validate checks the shape only. A zero class strength is reported by the
// service as a division guard, not here.
func (r *CreateAttendanceRequest) Validate() error {
	return validateStruct(r)
}
