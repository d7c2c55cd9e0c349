package capture

import "fmt"

// CaptureError represents a domain-specific error
type CaptureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeFileCreate      = "FILE_CREATE"
	ErrCodeWriteFailed     = "WRITE_FAILED"
	ErrCodeOverrun         = "FIFO_OVERRUN"
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrCodeSessionExists   = "SESSION_EXISTS"
	ErrCodeInvalidParams   = "INVALID_PARAMS"
)

// NewCaptureError creates a new capture error
func NewCaptureError(code, message string, cause error) *CaptureError {
	return &CaptureError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
