package errors

import "fmt"

// AppError represents a custom application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
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

// Is matches any AppError carrying the same code, so wrapped kinds compare
// equal to the predefined sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

// Error codes surfaced by the monitoring core.
const (
	CodeInvalidURLFormat    = "INVALID_URL_FORMAT"
	CodeCredentialRejected  = "CREDENTIAL_REJECTED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeStorageCorrupt      = "STORAGE_CORRUPT"
	CodeNotFound            = "NOT_FOUND"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
)

// Predefined error types
var (
	ErrInvalidURLFormat    = &AppError{Code: CodeInvalidURLFormat, Message: "Invalid project URL format"}
	ErrCredentialRejected  = &AppError{Code: CodeCredentialRejected, Message: "Credential rejected by project"}
	ErrUpstreamUnavailable = &AppError{Code: CodeUpstreamUnavailable, Message: "Upstream source unavailable"}
	ErrStorageCorrupt      = &AppError{Code: CodeStorageCorrupt, Message: "Stored records could not be decoded"}
	ErrNotFound            = &AppError{Code: CodeNotFound, Message: "Record not found"}
	ErrValidationFailed    = &AppError{Code: CodeValidationFailed, Message: "Validation failed"}
	ErrStorageUnavailable  = &AppError{Code: CodeStorageUnavailable, Message: "Secret store unavailable"}
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with additional context
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation returns a VALIDATION_FAILED error with the given details.
func Validation(details string) *AppError {
	return &AppError{Code: CodeValidationFailed, Message: ErrValidationFailed.Message, Details: details}
}
