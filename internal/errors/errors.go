package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Structured error types for the verifier worker.
 *
 * Every pipeline failure carries a code so the session record and the
 * operator alerting path can distinguish user-correctable capture problems
 * from environment faults.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors (caller-correctable)
	ErrorEmptyInput        ErrorCode = "EMPTY_INPUT"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Pipeline errors
	ErrorBoundaryDetection ErrorCode = "BOUNDARY_DETECTION_FAILED"
	ErrorInternalCompute   ErrorCode = "INTERNAL_COMPUTATION"

	// Environment errors (operator-correctable)
	ErrorOCRUnavailable ErrorCode = "OCR_ENGINE_UNAVAILABLE"
	ErrorStorageFailed  ErrorCode = "STORAGE_FAILED"
)

// VerifyError represents a structured pipeline error bound to a session.
type VerifyError struct {
	Code      ErrorCode
	Message   string
	SessionID string
	Timestamp time.Time
	Cause     error
}

func (e *VerifyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerifyError) Unwrap() error {
	return e.Cause
}

// UserCorrectable reports whether the end user can resolve the failure by
// retaking the photo, as opposed to an operator-side fault.
func (e *VerifyError) UserCorrectable() bool {
	switch e.Code {
	case ErrorEmptyInput, ErrorUnsupportedFormat, ErrorBoundaryDetection, ErrorInternalCompute:
		return true
	}
	return false
}

// Factory functions for common errors

func NewEmptyInputError(sessionID string) *VerifyError {
	return &VerifyError{
		Code:      ErrorEmptyInput,
		Message:   "Empty image upload",
		SessionID: sessionID,
		Timestamp: time.Now(),
	}
}

func NewUnsupportedFormatError(sessionID string, cause error) *VerifyError {
	return &VerifyError{
		Code:      ErrorUnsupportedFormat,
		Message:   "Unsupported image format",
		SessionID: sessionID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewBoundaryDetectionError(sessionID string, cause error) *VerifyError {
	return &VerifyError{
		Code:      ErrorBoundaryDetection,
		Message:   "Unable to detect document boundary; please hold steady",
		SessionID: sessionID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewOCRUnavailableError(sessionID string, cause error) *VerifyError {
	return &VerifyError{
		Code:      ErrorOCRUnavailable,
		Message:   "OCR engine is not installed or not configured",
		SessionID: sessionID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(sessionID string, cause error) *VerifyError {
	return &VerifyError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to persist session state",
		SessionID: sessionID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// CodeOf extracts the error code from err, or empty when err is not a
// VerifyError.
func CodeOf(err error) ErrorCode {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
