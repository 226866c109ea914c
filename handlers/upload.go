package handlers

import (
	"fmt"
	"net/http"

	"github.com/medhanag29/rural-classroom/pkg"
	"github.com/medhanag29/rural-classroom/services"
)

// multipartOverhead is the slack allowed on top of the file for form fields
// and boundaries.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	uploadService services.UploadService
	maxSize       int64
}

func NewUploadHandler(uploadService services.UploadService, maxSize int64) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxSize:       maxSize,
	}
}

// Upload handles POST /api/upload?bucket=<name> with a "file" form field and
// returns the public URL of the stored blob.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		pkg.Error(w, fmt.Errorf("%w: failed to parse multipart form", pkg.ErrBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		pkg.Error(w, fmt.Errorf("%w: file field is required", pkg.ErrBadRequest))
		return
	}
	defer file.Close()

	result, err := h.uploadService.Upload(r.Context(), r.URL.Query().Get("bucket"), file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, result)
}
