package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// AppError is a failure that is meant to reach the caller.
type AppError struct {
	Code       int
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on Code so sentinel AppErrors compare equal after wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New creates an AppError.
func New(code int, msg string, httpStatus int, cause error) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: httpStatus, Cause: cause}
}

// Wrap attaches code and status to err.
func Wrap(err error, code int, msg string, httpStatus int) *AppError {
	return New(code, msg, httpStatus, err)
}

// From extracts the AppError carried by err, if any.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for unknown errors.
func StatusOf(err error) int {
	if appErr, ok := From(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
