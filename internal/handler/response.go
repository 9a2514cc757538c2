package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dhrumilshah777/imageDrop/internal/apperror"
)

// ErrorResponse is the error body of every API endpoint. Title is the
// short headline shown on upload notices.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data with the given status. Headers must be set before
// the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps an application error onto an HTTP status and error type.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrTransfer):
		return http.StatusBadGateway, "transfer_error"
	case errors.Is(err, apperror.ErrPersistence):
		return http.StatusBadGateway, "persistence_error"
	case errors.Is(err, apperror.ErrQuery):
		return http.StatusServiceUnavailable, "query_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a domain error to an HTTP response. Errors that are not
// an *apperror.AppError become a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := statusOf(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Title:   appErr.Title,
		Field:   appErr.Field,
	})
}

// writeUploadError is writeError with the notice headline always filled in.
func writeUploadError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeError(w, err)
		return
	}
	status, errorType := statusOf(err)
	writeJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Title:   apperror.Title(err),
		Field:   appErr.Field,
	})
}
