// Package errors provides structured error handling for the application.
// It defines AppError type with error codes for consistent API responses.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes organized by category
const (
	// General errors (1000-1099)
	CodeSuccess       = 0
	CodeUnknown       = 1000
	CodeInvalidParams = 1001
	CodeNotFound      = 1002
	CodeUnauthorized  = 1003
	CodePlanLimit     = 1004
	CodeBusy          = 1005
	CodeCancelled     = 1006

	// Source fetch errors (1100-1199)
	CodeFetchFailed     = 1100
	CodeNoCompatible    = 1101
	CodeVideoNotFound   = 1102
	CodeUnsupportedURL  = 1103
	CodeCookiesExpired  = 1104
	CodeRateLimited     = 1105
	CodeBatchTooLarge   = 1106
	CodeEmptyBatch      = 1107
	CodeInvalidDuration = 1108

	// Storage errors (1500-1599)
	CodeDBError        = 1500
	CodeFileNotFound   = 1501
	CodeFileWriteError = 1502

	// Clip errors (1600-1699)
	CodeClipSelectFailed = 1600
	CodeExtractFailed    = 1601
	CodeBatchMember      = 1602
	CodeCaptionFailed    = 1603
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match any AppError carrying the same code,
// so wrapped copies of the predefined errors still compare equal.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetail wraps an error with additional detail
func WrapWithDetail(code int, message string, detail string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// Is checks if the target error is an AppError with the specified code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts error code from error, returns CodeUnknown if not AppError.
// A bare context cancellation is reported as CodeCancelled.
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	return CodeUnknown
}

// GetMessage extracts message from error
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return appErr.Message + ": " + appErr.Cause.Error()
		}
		return appErr.Message
	}
	return err.Error()
}

// StatusClientClosed mirrors the nginx convention for a request the client abandoned.
const StatusClientClosed = 499

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidParams, CodeUnsupportedURL, CodeBatchTooLarge, CodeEmptyBatch, CodeInvalidDuration:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePlanLimit:
		return http.StatusForbidden
	case CodeNotFound, CodeFileNotFound, CodeVideoNotFound:
		return http.StatusNotFound
	case CodeBusy:
		return http.StatusConflict
	case CodeCancelled:
		return StatusClientClosed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeFetchFailed, CodeNoCompatible, CodeCookiesExpired:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsValidation reports whether err rejects caller input rather than a runtime failure.
func IsValidation(err error) bool {
	return HTTPStatus(err) == http.StatusBadRequest
}

// Predefined common errors
var (
	ErrInvalidParams = New(CodeInvalidParams, "Invalid parameters")
	ErrNotFound      = New(CodeNotFound, "Resource not found")
	ErrUnauthorized  = New(CodeUnauthorized, "Unauthorized")
	ErrPlanLimit     = New(CodePlanLimit, "Not available on the current plan")
	ErrBusy          = New(CodeBusy, "Another job is already processing")
	ErrCancelled     = New(CodeCancelled, "Processing cancelled")
	ErrJobNotFound   = New(CodeNotFound, "Job not found")

	// Fetch
	ErrFetchFailed     = New(CodeFetchFailed, "Video download failed")
	ErrNoCompatible    = New(CodeNoCompatible, "No compatible encoding profile")
	ErrUnsupportedURL  = New(CodeUnsupportedURL, "Unsupported video reference")
	ErrCookiesExpired  = New(CodeCookiesExpired, "Cookies expired")
	ErrRateLimited     = New(CodeRateLimited, "Rate limited")
	ErrBatchTooLarge   = New(CodeBatchTooLarge, "Too many videos in batch")
	ErrEmptyBatch      = New(CodeEmptyBatch, "No video URLs provided")
	ErrInvalidDuration = New(CodeInvalidDuration, "Invalid clip duration")

	// Storage
	ErrDBError      = New(CodeDBError, "Database error")
	ErrFileNotFound = New(CodeFileNotFound, "File not found")

	// Clip
	ErrExtractFailed = New(CodeExtractFailed, "Clip extraction failed")
	ErrBatchMember   = New(CodeBatchMember, "Batch member failed")
)
