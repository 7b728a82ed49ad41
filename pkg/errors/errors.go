package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so derived copies still
// compare equal to the sentinel they were built from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithDetails(details any) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    details,
		HTTPStatus: e.HTTPStatus,
		Err:        e.Err,
	}
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		HTTPStatus: e.HTTPStatus,
		Err:        err,
	}
}

func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    message,
		Details:    e.Details,
		HTTPStatus: e.HTTPStatus,
		Err:        e.Err,
	}
}

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Bad request",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrTimeout = &AppError{
		Code:       "TIMEOUT",
		Message:    "Request timed out",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	ErrUpstream = &AppError{
		Code:       "HTTP_ERROR",
		Message:    "Backend returned an error",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrDecode = &AppError{
		Code:       "DECODE_ERROR",
		Message:    "Backend returned an unreadable response",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrTransport = &AppError{
		Code:       "TRANSPORT_ERROR",
		Message:    "Backend unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Service temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// classified is checked in order by From; fetch failures report membership
// through their own Is methods.
var classified = []*AppError{
	ErrValidation,
	ErrTimeout,
	ErrNotFound,
	ErrUpstream,
	ErrDecode,
	ErrTransport,
}

// From converts any error into an AppError. Errors that already are (or wrap)
// an AppError are returned as is; known failure classes are wrapped in their
// sentinel; everything else becomes ErrInternal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	for _, sentinel := range classified {
		if stderrors.Is(err, sentinel) {
			return sentinel.WithError(err)
		}
	}

	return ErrInternal.WithError(err)
}

// Code returns the AppError code for err, or an empty string for nil.
func Code(err error) string {
	if err == nil {
		return ""
	}
	return From(err).Code
}
