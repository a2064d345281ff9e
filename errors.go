package apischema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeArchive    ErrorType = "archive"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeApiNotFound          = "API_NOT_FOUND"
	ErrCodeSubmissionInFlight   = "SUBMISSION_IN_FLIGHT"
	ErrCodeStorageFailed        = "STORAGE_FAILED"
	ErrCodeArchiveFailed        = "ARCHIVE_FAILED"
	ErrCodeArchiveNotConfigured = "ARCHIVE_NOT_CONFIGURED"
	ErrCodeSchemaInvalid        = "SCHEMA_INVALID"
	ErrCodeInvalidFormat        = "INVALID_FORMAT"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// ErrSubmissionInFlight is returned when a form is submitted while an earlier
// submission for the same form is still being saved.
var ErrSubmissionInFlight = errors.New("a submission is already in progress")

// Error is the structured error returned by the service and stores.
type Error struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to the error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithField adds field context to the error
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// NewError creates a new Error
func NewError(errorType ErrorType, code, message string) *Error {
	return &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error
func NewValidationError(field, message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
		Details: make(map[string]any),
	}
}

// NewApiNotFoundError creates an api not found error
func NewApiNotFoundError(id string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeApiNotFound,
		Message: fmt.Sprintf("api '%s' not found", id),
		Details: map[string]any{"id": id},
	}
}

// NewConflictError wraps ErrSubmissionInFlight for the given api.
func NewConflictError(id string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeSubmissionInFlight,
		Message: fmt.Sprintf("api '%s' is being saved", id),
		Details: map[string]any{"id": id},
		Cause:   ErrSubmissionInFlight,
	}
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewArchiveError creates an archive error
func NewArchiveError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeArchive,
		Code:    ErrCodeArchiveFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// ValidationReport maps form field paths to human readable messages.
// It is returned instead of normalized data when a submission is rejected.
type ValidationReport map[string]string

// Add records msg for path. The first message for a path wins.
func (r ValidationReport) Add(path, msg string) {
	if _, exists := r[path]; !exists {
		r[path] = msg
	}
}

func (r ValidationReport) HasErrors() bool {
	return len(r) > 0
}

// Paths returns the offending paths in sorted order.
func (r ValidationReport) Paths() []string {
	return slices.Sorted(maps.Keys(r))
}

func (r ValidationReport) Error() string {
	switch len(r) {
	case 0:
		return "no validation errors"
	case 1:
		for path, msg := range r {
			return fmt.Sprintf("validation failed: %s: %s", path, msg)
		}
	}
	parts := make([]string, 0, len(r))
	for _, path := range r.Paths() {
		parts = append(parts, path+": "+r[path])
	}
	return fmt.Sprintf("validation failed: %d errors found (%s)", len(r), strings.Join(parts, "; "))
}

// ToError returns the report as an error if there are any entries, nil otherwise
func (r ValidationReport) ToError() error {
	if r.HasErrors() {
		return r
	}
	return nil
}

// AsValidationReport extracts a ValidationReport from err.
func AsValidationReport(err error) (ValidationReport, bool) {
	var report ValidationReport
	if errors.As(err, &report) {
		return report, true
	}
	return nil, false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	if _, ok := AsValidationReport(err); ok {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type == ErrorTypeValidation
	}
	return false
}

// IsConflictError checks if an error reports an in-flight submission
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSubmissionInFlight)
}
