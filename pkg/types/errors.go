package types

import "fmt"

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeUploadRejected ErrorType = "upload_rejected"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeExternal       ErrorType = "external"
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeTimeout        ErrorType = "timeout"
)

// PlatformError represents a structured error in the MediMart platform
type PlatformError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *PlatformError {
	return &PlatformError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewUploadRejectedError creates an error for a file rejected at attach time
func NewUploadRejectedError(code, message string) *PlatformError {
	return &PlatformError{
		Type:    ErrorTypeUploadRejected,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *PlatformError {
	return &PlatformError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewExternalError creates an error for a failed external collaborator call
func NewExternalError(code, message string, cause error) *PlatformError {
	return &PlatformError{
		Type:    ErrorTypeExternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *PlatformError {
	return &PlatformError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeExternalError     = "EXTERNAL_ERROR"
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeFileTooLarge      = "FILE_TOO_LARGE"
	ErrCodeFileTypeDenied    = "FILE_TYPE_DENIED"
	ErrCodeKYCFailed         = "KYC_FAILED"
	ErrCodeSubmitInFlight    = "SUBMIT_IN_FLIGHT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"
)

// SMTP test result codes returned by the settings service. The admin console
// keys its remediation hints off these values, so they are part of the API.
const (
	SMTPErrConnectionRefused    = "connection_refused"
	SMTPErrConnectionTimeout    = "connection_timeout"
	SMTPErrAuthenticationFailed = "authentication_failed"
	SMTPErrHostNotFound         = "host_not_found"
	SMTPErrAppPasswordRequired  = "app_password_required"
	SMTPErrTLSFailed            = "tls_failed"
	SMTPErrSendFailed           = "send_failed"
)
