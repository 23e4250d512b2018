// Package errors provides custom error types for the tally system.
// These errors let callers tell transport failures, malformed data and
// backend-reported rejections apart without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is, As and Join mirror the standard library so callers only import one package.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// Common sentinel errors for the tally system
var (
	// ErrNotFound indicates that a requested resource (usually a store key) was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates that the backend is temporarily unavailable
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrResetRejected indicates the backend answered a reset with ok=false
	ErrResetRejected = errors.New("reset rejected")

	// ErrClosed indicates use of a client, store or channel after Close
	ErrClosed = errors.New("closed")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a violated invariant or rejected input
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents a failed call to the backend REST API
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Endpoint, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode >= http.StatusInternalServerError {
		return target == ErrUnavailable
	}
	if e.StatusCode == http.StatusNotFound {
		return target == ErrNotFound
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(endpoint string, statusCode int, message string) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
	}
}

// BackendError is a failure the backend reported in a well-formed response
// body ({"ok": false, "error": "..."}). It is the only error class that is
// meant to reach the user as an actionable message.
type BackendError struct {
	Operation string
	Message   string
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected %s", e.Operation)
	}
	return fmt.Sprintf("backend rejected %s: %s", e.Operation, e.Message)
}

// Is implements errors.Is support
func (e *BackendError) Is(target error) bool {
	return e.Operation == "reset" && target == ErrResetRejected
}

// NewBackendError creates a new BackendError
func NewBackendError(operation, message string) *BackendError {
	return &BackendError{Operation: operation, Message: message}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ChannelError represents a push channel failure (dial, handshake, read).
type ChannelError struct {
	Transport string
	Op        string
	Attempt   int
	Err       error
}

// Error implements the error interface
func (e *ChannelError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("%s channel %s failed (attempt %d): %v", e.Transport, e.Op, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s channel %s failed: %v", e.Transport, e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ChannelError) Is(target error) bool {
	return target == ErrUnavailable
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "engine.io", ...
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("parse error in %s from %s: %s", e.Format, e.Source, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewParseError creates a new ParseError
func NewParseError(format, source, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "delete", "watch", "publish"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnavailable checks if an error indicates the backend or channel is unreachable
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsResetRejected checks if the backend refused a reset
func IsResetRejected(err error) bool {
	return errors.Is(err, ErrResetRejected)
}

// IsClosed checks if an error comes from using a closed component
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, source string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, source, err.Error(), err)
}

// WrapAPI wraps a transport error as an APIError
func WrapAPI(endpoint string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// WrapChannel wraps an error as a ChannelError
func WrapChannel(transport, op string, attempt int, err error) error {
	if err == nil {
		return nil
	}
	return &ChannelError{Transport: transport, Op: op, Attempt: attempt, Err: err}
}
