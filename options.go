package tally

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

// Option is a function that configures a Client
type Option func(*options) error

type options struct {
	store            *store.Store
	backend          backend.API
	channel          channel.Channel
	normalizer       *records.Normalizer
	target           int
	logger           *zerolog.Logger
	snapshotDisabled bool
	inboxSize        int
}

func defaults() *options {
	return &options{
		target:    constants.DefaultTarget,
		inboxSize: constants.InboxSize,
	}
}

// apply applies the options and fills in what is still missing.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.normalizer == nil {
		o.normalizer = records.DefaultNormalizer()
	}
	if o.store == nil {
		o.store = store.New(store.NewMemoryBackend(),
			store.WithNormalizer(o.normalizer),
			store.WithLogger(o.logger))
	}
	if o.channel == nil {
		o.channel = channel.NewNop()
	}
	return o, nil
}

// WithStore sets the persisted slot.
func WithStore(s *store.Store) Option {
	return func(o *options) error {
		if s == nil {
			return errors.NewValidationError("store", nil, "store cannot be nil")
		}
		o.store = s
		return nil
	}
}

// WithBackend sets the REST backend used for the snapshot and reset.
func WithBackend(api backend.API) Option {
	return func(o *options) error {
		o.backend = api
		return nil
	}
}

// WithChannel sets the push channel. The client owns it: Run opens it and
// Close closes it.
func WithChannel(ch channel.Channel) Option {
	return func(o *options) error {
		o.channel = ch
		return nil
	}
}

// WithNormalizer sets the normalizer applied to snapshot and live payloads.
func WithNormalizer(n *records.Normalizer) Option {
	return func(o *options) error {
		o.normalizer = n
		return nil
	}
}

// WithTarget sets the goal used by Progress.
func WithTarget(target int) Option {
	return func(o *options) error {
		if target <= 0 {
			return errors.NewValidationError("target", target, "target must be positive")
		}
		o.target = target
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithSnapshotDisabled skips the snapshot read; the client goes live on the
// restored list.
func WithSnapshotDisabled(disabled bool) Option {
	return func(o *options) error {
		o.snapshotDisabled = disabled
		return nil
	}
}
