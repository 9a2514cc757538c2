package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")

	// Upload pipeline failures. Transfer means the blob never made it to the
	// object store; persistence means the blob is stored but its metadata
	// documents are not (an orphaned blob).
	ErrTransfer    = errors.New("transfer failed")
	ErrPersistence = errors.New("persistence failed")

	// ErrQuery marks a live query that failed terminally.
	ErrQuery = errors.New("query failed")
)

type AppError struct {
	Err     error  // sentinel kind
	Cause   error  // optional: underlying error from a collaborator
	Title   string // Optional: short headline for user notifications
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either one.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// WithTitle sets the notification headline and returns e for chaining.
func (e *AppError) WithTitle(title string) *AppError {
	e.Title = title
	return e
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated means no uploader identity was available.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// TransferFailed wraps an object store error. The transport's own message is
// surfaced to the user as-is.
func TransferFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrTransfer,
		Cause:   cause,
		Title:   "Upload failed",
		Message: cause.Error(),
	}
}

// PersistenceFailed wraps a document store error that happened after the
// blob was already stored.
func PersistenceFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Cause:   cause,
		Title:   "Upload failed",
		Message: "file stored, metadata not saved",
	}
}

// QueryFailed wraps a terminal live query error. The message is the cause's
// message verbatim.
func QueryFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrQuery,
		Cause:   cause,
		Message: cause.Error(),
	}
}

// Title returns the notification headline for err. AppErrors without an
// explicit title, and plain errors, get a generic one.
func Title(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Title != "" {
		return appErr.Title
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "Invalid file"
	case errors.Is(err, ErrUnauthenticated):
		return "Not signed in"
	default:
		return "Upload failed"
	}
}
