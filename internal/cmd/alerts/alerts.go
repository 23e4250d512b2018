// Package alerts provides a structured system for status notifications.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentstation/tally/pkg/errors"
)

// Alert represents a status notification shown to the user.
type Alert struct {
	Level     Level
	Message   string
	Details   []string
	Timestamp time.Time
	Err       error
}

// New creates a new alert with the given level and message.
func New(level Level, message string) *Alert {
	return &Alert{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewError creates a new error alert.
func NewError(message string) *Alert {
	return New(LevelError, message)
}

// NewWarning creates a new warning alert.
func NewWarning(message string) *Alert {
	return New(LevelWarning, message)
}

// NewInfo creates a new info alert.
func NewInfo(message string) *Alert {
	return New(LevelInfo, message)
}

// NewSuccess creates a new success alert.
func NewSuccess(message string) *Alert {
	return New(LevelSuccess, message)
}

// WithError adds an underlying error to the alert.
func (a *Alert) WithError(err error) *Alert {
	a.Err = err
	return a
}

// WithDetails adds additional context details to the alert.
func (a *Alert) WithDetails(details ...string) *Alert {
	a.Details = append(a.Details, details...)
	return a
}

// String returns a string representation of the alert.
func (a *Alert) String() string {
	message := fmt.Sprintf("%s %s", a.Level.Icon(), a.Message)
	if a.Err != nil {
		message += fmt.Sprintf(": %v", a.Err)
	}
	return message
}

// Writer handles alert output to different formats and destinations.
type Writer interface {
	WriteAlert(alert *Alert) error
}

// FromError builds an error alert for err with a hint on how to recover,
// chosen from the error kind.
func FromError(err error) *Alert {
	alert := NewError("Command failed").WithError(err)

	var configErr *errors.ConfigError
	var apiErr *errors.APIError
	switch {
	case errors.As(err, &configErr) && strings.HasPrefix(configErr.Component, "backend"):
		alert.WithDetails("set the backend with --backend or TALLY_BACKEND_URL")
	case errors.As(err, &configErr):
		alert.WithDetails("check the configuration file or the TALLY_ environment variables")
	case errors.IsResetRejected(err):
		alert.WithDetails("the backend refused the reset; local records were kept")
	case errors.IsUnavailable(err):
		alert.WithDetails("the backend could not be reached; try again or check tally status")
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		alert.WithDetails(fmt.Sprintf("the backend rejected the request (HTTP %d)", apiErr.StatusCode))
	case errors.IsValidationError(err):
		alert.WithDetails("run the command with --help for accepted values")
	}
	return alert
}
