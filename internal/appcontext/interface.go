// Package appcontext provides the shared application context interface
// used by all commands. This eliminates interface duplication across
// command packages and provides a single source of truth for app dependencies.
package appcontext

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

// Interface defines the application context interface that commands need.
// The App struct from cmd/tally/app implements it; commands accept the
// interface so tests can substitute a Mock.
type Interface interface {
	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// RedirectLogs sends log lines of components created afterwards to w.
	RedirectLogs(w io.Writer)

	// OutputFormat returns the configured output format (json, yaml, table, wide).
	OutputFormat() string

	// Target returns the configured progress target.
	Target() int

	// Normalizer returns the normalizer with the configured aliases.
	Normalizer() *records.Normalizer

	// Backend returns the REST client for the configured backend URL.
	Backend() (backend.API, error)

	// Store opens the configured record slot. The app owns it and closes it
	// on shutdown.
	Store(ctx context.Context) (*store.Store, error)

	// Channel creates a push channel. An empty transport uses the
	// configured one.
	Channel(transport channel.Transport) (channel.Channel, error)

	// Client assembles a sync controller from the configured parts. Extra
	// options are applied last.
	Client(ctx context.Context, transport channel.Transport, opts ...tally.Option) (tally.Client, error)

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
