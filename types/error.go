package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Pipeline error codes
const (
	ErrEmptyPrompt          ErrorCode = "EMPTY_PROMPT"
	ErrUpstreamError        ErrorCode = "UPSTREAM_ERROR"
	ErrMissingImageField    ErrorCode = "MISSING_IMAGE_FIELD"
	ErrInvalidResponseShape ErrorCode = "INVALID_RESPONSE_SHAPE"
	ErrEmptyImageData       ErrorCode = "EMPTY_IMAGE_DATA"
	ErrNetwork              ErrorCode = "NETWORK_ERROR"
)

// Adapter error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInvalidSetting ErrorCode = "INVALID_SETTING"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
// For ErrUpstreamError, HTTPStatus and Body carry the upstream status line and response text.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Body       string    `json:"body,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Code == ErrUpstreamError && e.HTTPStatus != 0 {
		msg = fmt.Sprintf("%s: status=%d body=%s", msg, e.HTTPStatus, e.Body)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewUpstreamError creates the error raised for a non-200 upstream answer.
func NewUpstreamError(status int, body string) *Error {
	return &Error{
		Code:       ErrUpstreamError,
		Message:    "upstream service returned an error",
		HTTPStatus: status,
		Body:       body,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithStage records which pipeline stage produced the error (generate, upscale).
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// AsError returns the first *Error in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
