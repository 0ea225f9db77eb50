package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies created with WithCause still match their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying cause as its underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, cause)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeProviderFailure = "PROVIDER_FAILURE"
	ErrCodeCancelled       = "CANCELLED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidURL     = NewDomainError(ErrCodeValidation, "invalid YouTube URL")
	ErrInvalidVideoID = NewDomainError(ErrCodeValidation, "could not extract video identifier")
	ErrEmptyQuestion  = NewDomainError(ErrCodeValidation, "question cannot be empty")
)

// Session errors
var (
	ErrNoActiveSession     = NewDomainError(ErrCodeNotFound, "no video has been processed")
	ErrIngestionSuperseded = NewDomainError(ErrCodeCancelled, "video processing was superseded by a newer request")
	ErrRequestCancelled    = NewDomainError(ErrCodeCancelled, "request was cancelled")
)

// Source data errors
var (
	ErrTranscriptUnavailable = NewDomainError(ErrCodeUnavailable, "no transcript available for this video")
	ErrTranscriptTooShort    = NewDomainError(ErrCodeUnavailable, "transcript is too short to process")
	ErrNoChunks              = NewDomainError(ErrCodeUnavailable, "transcript produced no chunks")
)

// Provider errors
var (
	ErrAnswerFailed  = NewDomainError(ErrCodeProviderFailure, "language model failed to answer")
	ErrSummaryFailed = NewDomainError(ErrCodeProviderFailure, "language model failed to summarize")
)
