package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// CwrapError is a structured error type with context.
type CwrapError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	Path    string
}

// Error implements the error interface.
func (e *CwrapError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CwrapError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *CwrapError) Is(target error) bool {
	var t *CwrapError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *CwrapError) WithContext(key string, value interface{}) *CwrapError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the filesystem path the error relates to.
func (e *CwrapError) WithPath(path string) *CwrapError {
	e.Path = path

	return e
}

// Public returns the message suitable for a JSON error body: the message
// followed by the cause, without the code prefix.
func (e *CwrapError) Public() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

// Error creation functions

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string, cause error) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CwrapError {
	return &CwrapError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// FromFS classifies a filesystem error: a missing file becomes a not-found
// error, anything else an I/O error. A nil error stays nil.
func FromFS(err error, message, path string) error {
	if err == nil {
		return nil
	}

	var ce *CwrapError
	if errors.As(err, &ce) {
		return err
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NewNotFoundError(ErrCodeFileNotFound, message, err).WithPath(path)
	}
	if errors.Is(err, fs.ErrPermission) {
		return NewIOError(ErrCodePermissionDenied, message, err).WithPath(path)
	}

	return NewIOError(ErrCodeIO, message, err).WithPath(path)
}

// TypeOf returns the error type of err, or ErrorTypeInternal for errors that
// are not CwrapErrors.
func TypeOf(err error) ErrorType {
	var ce *CwrapError
	if errors.As(err, &ce) {
		return ce.Type
	}

	return ErrorTypeInternal
}

// IsNotFound checks if an error reports a missing file or directory.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsValidation checks if an error is caused by invalid input.
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	return TypeOf(err) == ErrorTypeBuild
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its type. Not-found and
// validation errors are expected in normal operation and logged as warnings.
func (h *ErrorHandler) Handle(ctx context.Context, err error, msg string, fields ...interface{}) {
	if err == nil || h.logger == nil {
		return
	}

	var ce *CwrapError
	if errors.As(err, &ce) {
		fields = append(fields, "type", ce.Type, "code", ce.Code)
		if ce.Path != "" {
			fields = append(fields, "path", ce.Path)
		}
		switch ce.Type {
		case ErrorTypeNotFound, ErrorTypeValidation:
			h.logger.Warn(ctx, err, msg, fields...)
			return
		}
	}

	h.logger.Error(ctx, err, msg, fields...)
}

// Common error codes.
const (
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidDocument   = "ERR_INVALID_DOCUMENT"
	ErrCodeUnknownDocument   = "ERR_UNKNOWN_DOCUMENT"
	ErrCodeMalformedDocument = "ERR_MALFORMED_DOCUMENT"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeRoutesNotFound    = "ERR_ROUTES_NOT_FOUND"
	ErrCodePermissionDenied  = "ERR_PERMISSION_DENIED"
	ErrCodeIO                = "ERR_IO"
	ErrCodeBuildFailed       = "ERR_BUILD_FAILED"
	ErrCodeBuildUnavailable  = "ERR_BUILD_UNAVAILABLE"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeLaunchFailed      = "ERR_LAUNCH_FAILED"
	ErrCodeInternalError     = "ERR_INTERNAL"
)
