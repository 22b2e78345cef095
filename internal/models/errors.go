// Package models defines the data structures shared across the updater:
// the error taxonomy, device flags, and progress/status reporting.
package models

// AppError is a structured application error with an HTTP status code,
// matching the taxonomy surfaced by the updater core to its callers.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

// Error constructors: NotSupported, Internal, Write, NeedsUserAction, BadRequest.
var (
	ErrNotSupported = func(msg string) *AppError {
		return &AppError{Code: "NOT_SUPPORTED", Message: msg, Status: 400}
	}
	ErrInternal = func(msg string) *AppError {
		return &AppError{Code: "INTERNAL", Message: msg, Status: 500}
	}
	ErrWrite = func(msg string) *AppError {
		return &AppError{Code: "WRITE", Message: msg, Status: 500}
	}
	ErrNeedsUserAction = func(msg string) *AppError {
		return &AppError{Code: "NEEDS_USER_ACTION", Message: msg, Status: 409}
	}
	ErrBadRequest = func(msg string) *AppError {
		return &AppError{Code: "BAD_REQUEST", Message: msg, Status: 400}
	}
)
