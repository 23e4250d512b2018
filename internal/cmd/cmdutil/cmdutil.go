// Package cmdutil provides shared helpers for tally commands.
package cmdutil

import (
	"io"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/pkg/errors"
)

// ErrReported marks an error whose alert was already written; the entry
// point exits non-zero without printing it again.
var ErrReported = errors.New("error already reported")

type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() []error {
	return []error{e.err, ErrReported}
}

// Reported wraps err so it matches both itself and ErrReported.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// AlertWriter returns an alert writer for the command output format.
func AlertWriter(w io.Writer, format string) *alerts.FormatWriter {
	return alerts.NewFormatWriter(w, output.Format(format))
}

// Fail writes alert and returns its error marked as reported.
func Fail(w io.Writer, format string, alert *alerts.Alert) error {
	err := alert.Err
	if err == nil {
		err = errors.New(alert.Message)
	}
	if werr := AlertWriter(w, format).WriteAlert(alert); werr != nil {
		return err
	}
	return Reported(err)
}

// Print formats data for the command output format.
func Print(w io.Writer, format string, data any) error {
	return output.NewFormatter(output.Format(format)).Format(w, data)
}
