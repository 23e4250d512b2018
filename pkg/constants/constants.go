// Package constants provides shared constants used throughout the tally codebase.
// This includes timeouts, limits, file permissions, and the wire names of the
// backend contract that must stay consistent across packages.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for backend REST requests
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for store operations
	DefaultTimeout = 10 * time.Second

	// ShutdownTimeout bounds graceful shutdown of the CLI
	ShutdownTimeout = 5 * time.Second

	// DefaultReconnectDelay is the fixed delay between push channel reconnect attempts
	DefaultReconnectDelay = 1 * time.Second

	// DefaultPingInterval is used until the Socket.IO server announces its own
	DefaultPingInterval = 25 * time.Second

	// DefaultPingTimeout is used until the Socket.IO server announces its own
	DefaultPingTimeout = 20 * time.Second

	// WatchDebounce coalesces bursts of file events into one slot reload
	WatchDebounce = 50 * time.Millisecond
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// DefaultTarget is the number of records that counts as 100% progress
	DefaultTarget = 100

	// DefaultReconnectAttempts bounds push channel reconnects before giving up
	DefaultReconnectAttempts = 5

	// MaxMessageSize is the largest push channel frame accepted from the backend
	MaxMessageSize = 1 << 20

	// MaxResponseSize is the largest REST response body read from the backend
	MaxResponseSize = 16 << 20

	// InboxSize is the buffer of the controller event loop
	InboxSize = 256
)

// Backend contract names
const (
	// EntriesPath is the snapshot read endpoint
	EntriesPath = "/api/entries"

	// ResetPath is the reset endpoint
	ResetPath = "/api/reset"

	// BackfillPath asks the backend to import rows from its configured CSV sheet
	BackfillPath = "/api/backfill_csv"

	// WebhookPath receives raw form submissions
	WebhookPath = "/webhook/form"

	// HealthPath is the liveness endpoint
	HealthPath = "/healthz"

	// StreamPath is the server-sent events endpoint for backends exposing one
	StreamPath = "/api/stream"

	// SocketIOPath is the Socket.IO engine endpoint
	SocketIOPath = "/socket.io/"

	// UpdateEvent is the push channel event carrying records and reset signals
	UpdateEvent = "form_update"

	// DefaultStoreKey is the versioned slot name; schema changes use a new key
	DefaultStoreKey = "tally.records.v1"

	// Placeholder stands in for absent name and process number fields
	Placeholder = "—"
)
