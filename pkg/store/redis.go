package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
)

// DefaultRedisPrefix namespaces slot keys in a shared Redis database.
const DefaultRedisPrefix = "tally:"

// RedisBackend stores slots as Redis strings. Every write is followed by a
// notice on "<prefix><key>:changes" naming the writing handle, which lets
// watchers skip their own writes.
type RedisBackend struct {
	client *redis.Client
	prefix string
	origin string
	owned  bool
	logger *zerolog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// changeNotice is published after every Set and Delete.
type changeNotice struct {
	Origin  string `json:"origin"`
	Deleted bool   `json:"deleted"`
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger *zerolog.Logger) RedisOption {
	return func(b *RedisBackend) {
		b.logger = logger
	}
}

// NewRedisBackend wraps an existing client. The client stays owned by the
// caller and is not closed by Close.
func NewRedisBackend(client *redis.Client, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{
		client: client,
		prefix: DefaultRedisPrefix,
		origin: uuid.NewString(),
		subs:   make(map[*redis.PubSub]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.Component(b.logger, "store.redis")
	return b
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewIOError("connect", addr, fmt.Errorf("%w: %v", errors.ErrUnavailable, err))
	}
	b := NewRedisBackend(client, opts...)
	b.owned = true
	return b, nil
}

// Origin returns the id this handle stamps on its change notices.
func (b *RedisBackend) Origin() string {
	return b.origin
}

func (b *RedisBackend) redisKey(key string) string {
	return b.prefix + key
}

func (b *RedisBackend) changesChannel(key string) string {
	return b.prefix + key + ":changes"
}

// Get reads key.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.NewNotFoundError("key", key)
	}
	if err != nil {
		return nil, errors.WrapIO("get", b.redisKey(key), err)
	}
	return data, nil
}

// Set writes key and announces the change.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.write(ctx, key, false, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, b.redisKey(key), value, 0)
	})
}

// Delete removes key and announces the change.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.write(ctx, key, true, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, b.redisKey(key))
	})
}

func (b *RedisBackend) write(ctx context.Context, key string, deleted bool, cmd func(redis.Pipeliner)) error {
	notice, err := json.Marshal(changeNotice{Origin: b.origin, Deleted: deleted})
	if err != nil {
		return err
	}
	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		cmd(pipe)
		pipe.Publish(ctx, b.changesChannel(key), notice)
		return nil
	})
	if err != nil {
		op := "set"
		if deleted {
			op = "delete"
		}
		return errors.WrapIO(op, b.redisKey(key), err)
	}
	return nil
}

// Watch subscribes to the change channel of key. The subscription is
// confirmed before Watch returns.
func (b *RedisBackend) Watch(ctx context.Context, key string, fn ChangeFunc) (func(), error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	sub := b.client.Subscribe(ctx, b.changesChannel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.WrapIO("subscribe", b.changesChannel(key), err)
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.dispatch(ctx, key, msg.Payload, fn)
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			_ = sub.Close()
			<-done
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()

	b.logger.Debug().Str("key", key).Str("origin", b.origin).Msg("Watching slot")
	return stop, nil
}

func (b *RedisBackend) dispatch(ctx context.Context, key, payload string, fn ChangeFunc) {
	var notice changeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("Ignoring malformed change notice")
		return
	}
	if notice.Origin == b.origin {
		return
	}

	b.logger.Debug().
		Str("key", key).
		Str("origin", notice.Origin).
		Bool("deleted", notice.Deleted).
		Msg("External slot change")

	if notice.Deleted {
		fn(nil, true)
		return
	}
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		fn(nil, true)
		return
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("key", key).Msg("Failed to read changed slot")
		return
	}
	fn(data, false)
}

// Close ends every subscription and, for backends created by DialRedis,
// closes the client.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	if b.owned {
		return b.client.Close()
	}
	return nil
}

func (b *RedisBackend) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrClosed
	}
	return nil
}
