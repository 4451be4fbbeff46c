// Package apperr defines the error taxonomy shared by the lookup service and
// maps it onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput reports a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream reports a non-success answer from the vendor API.
	ErrUpstream = errors.New("upstream error")
	// ErrUnauthorized reports that the vendor rejected our credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTargetNotFound reports that the searched address was absent from the vendor records.
	ErrTargetNotFound = errors.New("target address not found")
	// ErrNotFound reports a bad session or household key.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a second search on a session that already has one in flight.
	ErrConflict = errors.New("conflict")
	// ErrTimeout reports that the vendor call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode picks the response status for err.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUpstream):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTargetNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show a caller. Internal errors are
// reduced to a generic message.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if HTTPStatusCode(err) == http.StatusInternalServerError {
		return "Internal Server Error"
	}
	return err.Error()
}
