// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all command-line commands.
package emoji

// Symbol constants for CLI output.
const (
	// Success represents successful completion of an operation.
	// Used for: completed reset, healthy backend, applied records.
	Success = "✓"

	// Error represents failures.
	// Used for: rejected reset, unreachable backend.
	Error = "✗"

	// Warning represents non-critical issues.
	// Used for: snapshot unavailable, channel gave up.
	Warning = "!"

	// Info represents informational messages.
	Info = "i"

	// Record marks a newly applied record in plain watch output.
	Record = "+"

	// Reset marks a cleared list in plain watch output.
	Reset = "∅"

	// Unknown represents unknown or indeterminate states.
	Unknown = "?"
)
