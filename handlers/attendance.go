package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/services"
)

type AttendanceHandler struct {
	attendanceService services.AttendanceService
}

func NewAttendanceHandler(attendanceService services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r, repository.AttendanceFilterFields)
	if !ok {
		return
	}

	records, err := h.attendanceService.List(r.Context(), f)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, records)
}

// Create handles POST /api/attendance. A zero class strength is answered
// with 400 and the division-guard message.
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.attendanceService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, record)
}
