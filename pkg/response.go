package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
)

// APIResponse is the envelope for every API response.
// Clients read the payload from "data", lists and single records alike.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes a successful response.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// Error writes an error response.
// Domain errors are translated to the matching HTTP status code.
func Error(w http.ResponseWriter, err error) {
	ErrorWithMessage(w, StatusFor(err), err.Error())
}

// ErrorWithMessage writes an error response with a custom message.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode error response", http.StatusInternalServerError)
	}
}

// StatusFor maps domain errors to HTTP status codes.
// errors.Is walks the wrap chain, so wrapped sentinels match too.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrDivisionGuard):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyReqs):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrExternalCallFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
