// Package app provides the application context and dependency management
// for the tally CLI. It centralizes configuration, logging and the lifetime
// of the backend client, the record slot and the push channel.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/internal/appcontext"
	"github.com/agentstation/tally/internal/cmd/output"
	"github.com/agentstation/tally/internal/transport"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

// App represents the tally application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// lazily created, shared by every command of one invocation
	mu         sync.Mutex
	normalizer *records.Normalizer
	backend    backend.API
	slot       *store.Store
	slotOwner  store.Backend
}

// Ensure App implements appcontext.Interface at compile time.
var _ appcontext.Interface = (*App)(nil)

// New creates a new App instance with the given version information.
// Configuration is loaded from the default locations; WithConfig replaces it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}

	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// RedirectLogs sends the log lines of everything created afterwards to w,
// keeping the configured level.
func (a *App) RedirectLogs(w io.Writer) {
	a.logger = logging.Redirect(a.logger, w)
}

// OutputFormat returns the requested format, detected from the terminal when
// none was given.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// Target returns the progress target.
func (a *App) Target() int {
	return a.config.Target
}

// Normalizer returns the normalizer with the configured extra aliases.
func (a *App) Normalizer() *records.Normalizer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.normalizer == nil {
		aliases := records.DefaultAliases().Extend(a.config.Aliases)
		a.normalizer = records.NewNormalizer(records.WithAliases(aliases))
	}
	return a.normalizer
}

// Backend returns the REST client, creating it on first use.
func (a *App) Backend() (backend.API, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend != nil {
		return a.backend, nil
	}
	if err := a.config.RequireBackend(); err != nil {
		return nil, err
	}

	api, err := backend.New(a.config.BackendURL,
		backend.WithLogger(a.logger),
		backend.WithTransportOptions(
			transport.WithTimeout(a.config.HTTPTimeout),
			transport.WithUserAgent("tally/"+a.version),
		),
	)
	if err != nil {
		return nil, err
	}
	a.backend = api
	return api, nil
}

// Store opens the record slot on first use.
func (a *App) Store(ctx context.Context) (*store.Store, error) {
	normalizer := a.Normalizer()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.slot != nil {
		return a.slot, nil
	}

	b, err := store.Open(ctx, a.config.StoreOpenConfig(), a.logger)
	if err != nil {
		return nil, err
	}
	a.slotOwner = b
	a.slot = store.New(b,
		store.WithKey(a.config.Store.Key),
		store.WithNormalizer(normalizer),
		store.WithLogger(a.logger),
	)
	return a.slot, nil
}

// Channel creates a push channel for the configured backend.
func (a *App) Channel(t channel.Transport) (channel.Channel, error) {
	if t == "" {
		t = channel.Transport(a.config.Channel.Transport)
	}
	if t == channel.TransportNone {
		return channel.NewNop(), nil
	}
	if err := a.config.RequireBackend(); err != nil {
		return nil, err
	}
	return channel.New(t, a.config.BackendURL,
		channel.WithLogger(a.logger),
		channel.WithReconnect(channel.ReconnectPolicy{
			Attempts: a.config.Channel.ReconnectAttempts,
			Delay:    a.config.Channel.ReconnectDelay,
		}),
	)
}

// Client assembles a controller from the slot, the backend and a channel.
func (a *App) Client(ctx context.Context, t channel.Transport, opts ...tally.Option) (tally.Client, error) {
	st, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	api, err := a.Backend()
	if err != nil {
		return nil, err
	}
	ch, err := a.Channel(t)
	if err != nil {
		return nil, err
	}

	base := []tally.Option{
		tally.WithStore(st),
		tally.WithBackend(api),
		tally.WithChannel(ch),
		tally.WithNormalizer(a.Normalizer()),
		tally.WithTarget(a.config.Target),
		tally.WithLogger(a.logger),
	}
	c, err := tally.New(append(base, opts...)...)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

// Shutdown performs graceful shutdown of the application.
// It closes the record slot backend if one was opened.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	owner := a.slotOwner
	a.slotOwner = nil
	a.slot = nil
	a.mu.Unlock()

	if owner == nil {
		return nil
	}
	if err := owner.Close(); err != nil && !errors.IsClosed(err) {
		a.logger.Error().Err(err).Msg("Failed to close record slot")
		return err
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithBackend sets a custom backend client (useful for testing).
func WithBackend(api backend.API) Option {
	return func(a *App) error {
		a.backend = api
		return nil
	}
}
