package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medhanag29/rural-classroom/models"
	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/repository"
	"github.com/medhanag29/rural-classroom/services"
)

type DoubtHandler struct {
	doubtService services.DoubtService
}

func NewDoubtHandler(doubtService services.DoubtService) *DoubtHandler {
	return &DoubtHandler{doubtService: doubtService}
}

// List handles GET /api/doubts, ordered by lecture time.
func (h *DoubtHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := listFilter(w, r, repository.DoubtFilterFields)
	if !ok {
		return
	}

	doubts, err := h.doubtService.List(r.Context(), f)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, doubts)
}

func (h *DoubtHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CreateDoubtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doubt, err := h.doubtService.Create(r.Context(), user.ID, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, doubt)
}
