package appcontext

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value.
type Mock struct {
	LoggerFunc  func() *zerolog.Logger
	FormatFunc  func() string
	TargetFunc  func() int
	BackendFunc func() (backend.API, error)
	StoreFunc   func(context.Context) (*store.Store, error)
	ChannelFunc func(channel.Transport) (channel.Channel, error)
	ClientFunc  func(context.Context, channel.Transport, ...tally.Option) (tally.Client, error)
	VersionFunc func() string
}

var _ Interface = (*Mock)(nil)

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	return logging.NewNopLogger()
}

// RedirectLogs makes Logger write JSON lines to w.
func (m *Mock) RedirectLogs(w io.Writer) {
	logger := logging.Redirect(m.Logger(), w)
	m.LoggerFunc = func() *zerolog.Logger { return logger }
}

// OutputFormat returns the format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.FormatFunc != nil {
		return m.FormatFunc()
	}
	return "table"
}

// Target returns the target using the mock function or the default.
func (m *Mock) Target() int {
	if m.TargetFunc != nil {
		return m.TargetFunc()
	}
	return constants.DefaultTarget
}

// Normalizer returns the default normalizer.
func (m *Mock) Normalizer() *records.Normalizer {
	return records.DefaultNormalizer()
}

// Backend returns a backend using the mock function or a config error.
func (m *Mock) Backend() (backend.API, error) {
	if m.BackendFunc != nil {
		return m.BackendFunc()
	}
	return nil, errors.NewConfigError("backend_url", "not set", nil)
}

// Store returns a store using the mock function or an in-memory one.
func (m *Mock) Store(ctx context.Context) (*store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx)
	}
	return store.New(store.NewMemoryBackend()), nil
}

// Channel returns a channel using the mock function or a no-op one.
func (m *Mock) Channel(transport channel.Transport) (channel.Channel, error) {
	if m.ChannelFunc != nil {
		return m.ChannelFunc(transport)
	}
	return channel.NewNop(), nil
}

// Client returns a client using the mock function, or one assembled from
// the other mock parts.
func (m *Mock) Client(ctx context.Context, transport channel.Transport, opts ...tally.Option) (tally.Client, error) {
	if m.ClientFunc != nil {
		return m.ClientFunc(ctx, transport, opts...)
	}
	st, err := m.Store(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := m.Channel(transport)
	if err != nil {
		return nil, err
	}
	base := []tally.Option{
		tally.WithStore(st),
		tally.WithChannel(ch),
		tally.WithTarget(m.Target()),
		tally.WithLogger(m.Logger()),
	}
	if api, err := m.Backend(); err == nil {
		base = append(base, tally.WithBackend(api))
	}
	return tally.New(append(base, opts...)...)
}

// Version returns the version using the mock function or "test".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "test"
}

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

// BackendStub implements backend.API for command tests. Nil function
// fields succeed with zero values.
type BackendStub struct {
	EntriesFunc  func(context.Context) ([]records.Payload, error)
	ResetFunc    func(context.Context) (backend.ResetResult, error)
	BackfillFunc func(context.Context) (backend.BackfillResult, error)
	SubmitFunc   func(context.Context, records.Payload) error
	HealthFunc   func(context.Context) error
}

var _ backend.API = (*BackendStub)(nil)

// Entries implements backend.API.
func (b *BackendStub) Entries(ctx context.Context) ([]records.Payload, error) {
	if b.EntriesFunc != nil {
		return b.EntriesFunc(ctx)
	}
	return nil, nil
}

// Reset implements backend.API.
func (b *BackendStub) Reset(ctx context.Context) (backend.ResetResult, error) {
	if b.ResetFunc != nil {
		return b.ResetFunc(ctx)
	}
	return backend.ResetResult{OK: true}, nil
}

// Backfill implements backend.API.
func (b *BackendStub) Backfill(ctx context.Context) (backend.BackfillResult, error) {
	if b.BackfillFunc != nil {
		return b.BackfillFunc(ctx)
	}
	return backend.BackfillResult{OK: true}, nil
}

// Submit implements backend.API.
func (b *BackendStub) Submit(ctx context.Context, payload records.Payload) error {
	if b.SubmitFunc != nil {
		return b.SubmitFunc(ctx, payload)
	}
	return nil
}

// Health implements backend.API.
func (b *BackendStub) Health(ctx context.Context) error {
	if b.HealthFunc != nil {
		return b.HealthFunc(ctx)
	}
	return nil
}

// WithBackend returns a BackendFunc serving api.
func WithBackend(api backend.API) func() (backend.API, error) {
	return func() (backend.API, error) { return api, nil }
}

// WithStore returns a StoreFunc serving st.
func WithStore(st *store.Store) func(context.Context) (*store.Store, error) {
	return func(context.Context) (*store.Store, error) { return st, nil }
}
