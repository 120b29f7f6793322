package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
)

// Pipeline error codes. MissingInput is the only one that must not be
// retried: the precondition will not change between attempts.
const (
	ErrMissingInput ErrorCode = iota + 2000
	ErrProvider
	ErrEmptyResult
	ErrMalformedResponse
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewConflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// NewMissingInput indicates an unmet task precondition (no audio, no
// transcript, no structured data).
func NewMissingInput(message string) *AppError {
	return &AppError{
		Code:    ErrMissingInput,
		Message: message,
	}
}

// NewProvider wraps a non-success response from an external AI provider.
// The status code and response body are preserved for diagnosis.
func NewProvider(provider string, statusCode int, body string) *AppError {
	return &AppError{
		Code:    ErrProvider,
		Message: fmt.Sprintf("%s API error: %d - %s", provider, statusCode, body),
	}
}

// NewEmptyResult indicates a transport-level success that carried no
// usable content.
func NewEmptyResult(provider string) *AppError {
	return &AppError{
		Code:    ErrEmptyResult,
		Message: fmt.Sprintf("no content in %s response", provider),
	}
}

// NewMalformedResponse indicates generation output that could not be
// parsed into the expected JSON shape. The raw response is kept in the
// message so failures can be diagnosed from the error alone.
func NewMalformedResponse(raw string, err error) *AppError {
	return &AppError{
		Code:    ErrMalformedResponse,
		Message: fmt.Sprintf("failed to parse structured data from AI response: %s", raw),
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Code extracts the ErrorCode from err, or ErrInternal when err is not
// an AppError.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether a task attempt that failed with err is
// worth repeating. Provider failures, empty results and malformed
// responses are transient; missing input is not.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return true
	}
	return appErr.Code != ErrMissingInput
}
