package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict") // e.g., duplicate registration
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")

	// Attempt lifecycle errors.
	ErrInvalidTransition = errors.New("invalid section transition")
	ErrGateDenied        = errors.New("attempt window not open")
	// ErrAlreadyCompleted marks a repeat complete() call. Callers treat it as
	// success, not failure.
	ErrAlreadyCompleted = errors.New("attempt already completed")

	// ErrExecutionUnavailable means the execution backend was unreachable or
	// misbehaved. It is never conflated with a wrong answer.
	ErrExecutionUnavailable = errors.New("code execution backend unavailable")
)

// GateError carries the denial reason and a retry hint for a closed window.
type GateError struct {
	Reason     string
	RetryAfter int // seconds until the window opens; 0 when it never will
}

func (e *GateError) Error() string { return e.Reason }

func (e *GateError) Unwrap() error { return ErrGateDenied }

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrGateDenied) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidTransition) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrExecutionUnavailable) {
		return http.StatusServiceUnavailable
	}

	// Check for pgx specific errors (example for unique constraint)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" { // Unique violation
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
