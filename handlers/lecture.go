package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/services"
)

type LectureHandler struct {
	lectureService services.LectureService
}

func NewLectureHandler(lectureService services.LectureService) *LectureHandler {
	return &LectureHandler{lectureService: lectureService}
}

// List handles GET /api/lectures, oldest first.
func (h *LectureHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r, repository.LectureFilterFields)
	if !ok {
		return
	}

	lectures, err := h.lectureService.List(r.Context(), f)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, lectures)
}

// Create handles POST /api/lectures.
func (h *LectureHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateLectureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lecture, err := h.lectureService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, lecture)
}

// LiveToken handles POST /api/lectures/{id}/live-token.
func (h *LectureHandler) LiveToken(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	token, err := h.lectureService.LiveToken(r.Context(), user.ID, user.Name(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, token)
}
