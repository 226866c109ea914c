package models

import (
	"strings"
	"time"
)

// Lecture is one recorded or live session of a course.
type Lecture struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Name      string    `json:"name"`
	VideoURL  string    `json:"video_url"`
	Date      string    `json:"date"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateLectureRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Name     string `json:"name" validate:"required,notblank,max=200"`
	VideoURL string `json:"video_url" validate:"omitempty,url"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (r *CreateLectureRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.VideoURL = strings.TrimSpace(r.VideoURL)
	return validateStruct(r)
}

// LiveToken lets a participant join the live video room of a lecture.
type LiveToken struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	Room  string `json:"room"`
}
