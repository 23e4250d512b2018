package store

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
)

// Store is the persisted record list slot: one key holding a JSON array of
// normalized records.
//
// Reads never fail. Missing, unreadable or malformed content yields an empty
// list, and every element is normalized and merged so a loaded list always
// satisfies the list invariants.
type Store struct {
	backend    Backend
	key        string
	normalizer *records.Normalizer
	logger     *zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the slot key. Schema changes must use a new key name.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithNormalizer sets the normalizer applied to loaded elements.
func WithNormalizer(n *records.Normalizer) Option {
	return func(s *Store) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		key:        constants.DefaultStoreKey,
		normalizer: records.DefaultNormalizer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "store")
	return s
}

// Key returns the slot key.
func (s *Store) Key() string {
	return s.key
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Load returns the persisted list, or an empty list when there is none.
func (s *Store) Load(ctx context.Context) records.List {
	return s.LoadOr(ctx, records.List{})
}

// LoadOr returns the persisted list, or def when the slot is missing or its
// content cannot be read as a list.
func (s *Store) LoadOr(ctx context.Context, def records.List) records.List {
	data, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to read slot")
		}
		return def
	}

	list, err := s.decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Ignoring unreadable slot content")
		return def
	}
	s.logger.Debug().Str("key", s.key).Int("records", len(list)).Msg("Loaded slot")
	return list
}

// Save writes list to the slot. A failure is logged and returned; callers
// keep their in-memory state.
func (s *Store) Save(ctx context.Context, list records.List) error {
	if list == nil {
		list = records.List{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to encode records")
		return err
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Int("records", len(list)).Msg("Failed to persist records")
		return err
	}
	return nil
}

// Clear removes the slot.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("Failed to clear slot")
		return err
	}
	return nil
}

// Observe calls fn with the decoded list whenever another process changes the
// slot. A removed or unreadable slot is reported as an empty list.
func (s *Store) Observe(ctx context.Context, fn func(records.List)) (cancel func(), err error) {
	return s.backend.Watch(ctx, s.key, func(value []byte, deleted bool) {
		if deleted {
			fn(records.List{})
			return
		}
		list, err := s.decode(value)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("Unreadable external slot content")
			list = records.List{}
		}
		fn(list)
	})
}

// decode reads a JSON array of payloads. Elements that are not objects are
// skipped; the rest are normalized and merged.
func (s *Store) decode(data []byte) (records.List, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("json", s.key, err)
	}

	payloads := make([]records.Payload, 0, len(raw))
	for _, item := range raw {
		var p records.Payload
		if err := json.Unmarshal(item, &p); err != nil || p == nil {
			continue
		}
		payloads = append(payloads, p)
	}
	return records.Merge(nil, s.normalizer.NormalizeAll(payloads)), nil
}
