// Package errs defines the error taxonomy shared by the authoring and
// generation pipelines. Raw transport errors are translated into these
// types at the gateway boundary and never reach the pipeline layer.
package errs

import (
	"fmt"
	"strings"
)

// ServiceCode classifies failures of the external recognition service.
type ServiceCode string

const (
	CodeAIUnavailable   ServiceCode = "AI_UNAVAILABLE"
	CodePayloadTooLarge ServiceCode = "PAYLOAD_TOO_LARGE"
	CodeAnalysisFailed  ServiceCode = "ANALYSIS_FAILED"
)

// ValidationError is always recoverable locally. Fields itemizes the
// offending field names for user-facing messages.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// ExternalServiceError wraps a failed detection/mapping call. Callers
// recover by falling back to the manual workflow.
type ExternalServiceError struct {
	Code    ServiceCode
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func NewServiceError(code ServiceCode, message string, err error) *ExternalServiceError {
	return &ExternalServiceError{Code: code, Message: message, Err: err}
}

// RenderError marks an unreadable or corrupt source file. Terminal for
// that upload attempt; the authoring pipeline returns to its upload
// state.
type RenderError struct {
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RenderError) Unwrap() error { return e.Err }

func NewRenderError(message string, err error) *RenderError {
	return &RenderError{Message: message, Err: err}
}

// BatchError is terminal for a bulk job. Row is the 1-based ordinal of
// the row that failed.
type BatchError struct {
	Row int
	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk generation failed at row %d: %v", e.Row, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
