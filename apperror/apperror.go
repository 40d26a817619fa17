// Package apperror carries the error codes surfaced by the slicer, the
// timeline builder and the collaborators around them.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable error code.
type ErrorCode string

const (
	// ErrCodeInvalidArgument marks a bad parameter relationship. A slicer
	// built from one can never segment.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeAudio marks unusable audio for a single call (channel count,
	// empty input, length, sample rate).
	ErrCodeAudio ErrorCode = "AUDIO_ERROR"
	// ErrCodeDataIntegrity marks predictions that disagree with themselves.
	ErrCodeDataIntegrity ErrorCode = "DATA_INTEGRITY"
	// ErrCodeInference marks a failed call to the model collaborator.
	ErrCodeInference ErrorCode = "INFERENCE_FAILED"
	ErrCodeNotFound  ErrorCode = "NOT_FOUND"
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
)

var httpStatuses = map[ErrorCode]int{
	ErrCodeInvalidArgument: http.StatusBadRequest,
	ErrCodeAudio:           http.StatusUnprocessableEntity,
	ErrCodeDataIntegrity:   http.StatusBadGateway,
	ErrCodeInference:       http.StatusBadGateway,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// AppError is the error type returned across package boundaries.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code the API answers with for this error.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatuses[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithCause sets the underlying cause and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(message string) *AppError {
	return New(ErrCodeInvalidArgument, message)
}

func Audio(message string) *AppError {
	return New(ErrCodeAudio, message)
}

func DataIntegrity(message string) *AppError {
	return New(ErrCodeDataIntegrity, message)
}

func Inference(cause error) *AppError {
	return New(ErrCodeInference, "model inference failed").WithCause(cause)
}

func NotFound(resource string) *AppError {
	return Newf(ErrCodeNotFound, "%s not found", resource).WithDetail("resource", resource)
}

func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "unexpected error").WithCause(cause)
}

// As extracts an *AppError from anywhere in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Code returns the code carried by err, or ErrCodeInternal for foreign errors.
func Code(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
