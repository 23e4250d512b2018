package channel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
)

// session runs one connection until it drops. It calls ready once the
// connection can deliver events.
type session func(ctx context.Context, ready func()) error

type subscription struct {
	id      int
	event   string
	handler Handler
}

// base holds what every transport shares: the handler registry, the status
// and the reconnect loop.
type base struct {
	transport string
	cfg       config
	logger    *zerolog.Logger
	run       session

	mu     sync.RWMutex
	subs   []subscription
	nextID int
	status Status
	opened bool
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newBase(transport string, cfg config, run session) *base {
	return &base{
		transport: transport,
		cfg:       cfg,
		logger:    logging.Component(cfg.logger, "channel."+transport),
		run:       run,
		done:      make(chan struct{}),
	}
}

// Subscribe registers h for event.
func (b *base) Subscribe(event string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, event: event, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// dispatch calls the handlers of msg.Event outside the lock.
func (b *base) dispatch(msg Message) {
	b.mu.RLock()
	var handlers []Handler
	for _, s := range b.subs {
		if s.event == msg.Event {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug().Str("event", msg.Event).Msg("No handler for event")
		return
	}
	for _, h := range handlers {
		h(msg)
	}
}

// Open starts the connection loop.
func (b *base) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrClosed
	}
	if b.opened {
		return errors.NewValidationError("channel", b.transport, "channel already open")
	}
	b.opened = true

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go b.loop(ctx)
	return nil
}

// Close stops the loop, waits for it and drops every handler.
func (b *base) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	opened := b.opened
	cancel := b.cancel
	b.subs = nil
	b.mu.Unlock()

	if opened {
		cancel()
		<-b.done
	} else {
		close(b.done)
	}
	b.setStatus(StatusClosed)
	return nil
}

// Done is closed when the loop exits.
func (b *base) Done() <-chan struct{} {
	return b.done
}

// Err returns the error that made the loop give up.
func (b *base) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// Status returns the connection status.
func (b *base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *base) setStatus(s Status) {
	b.mu.Lock()
	if b.status == s || b.status == StatusClosed {
		b.mu.Unlock()
		return
	}
	b.status = s
	hook := b.cfg.onStatus
	b.mu.Unlock()

	b.logger.Debug().Str("status", s.String()).Msg("Channel status")
	if hook != nil {
		hook(s)
	}
}

// loop runs sessions until the context ends or the reconnect policy is
// exhausted.
func (b *base) loop(ctx context.Context) {
	defer close(b.done)

	policy := b.cfg.reconnect
	failures := 0
	status := StatusConnecting

	for {
		b.setStatus(status)

		connected := false
		err := b.run(ctx, func() {
			connected = true
			failures = 0
			b.setStatus(StatusConnected)
			b.logger.Info().Str("transport", b.transport).Msg("Channel connected")
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("connection closed by server")
		}

		failures++
		if policy.Attempts >= 0 && failures > policy.Attempts {
			final := errors.WrapChannel(b.transport, "connect", failures, err)
			b.mu.Lock()
			b.err = final
			b.mu.Unlock()
			b.setStatus(StatusDisconnected)
			b.logger.Error().Err(final).Msg("Channel gave up reconnecting")
			return
		}

		event := b.logger.Warn()
		if connected {
			event = b.logger.Info()
		}
		event.Err(err).
			Int("attempt", failures).
			Dur("delay", policy.Delay).
			Msg("Channel disconnected, reconnecting")

		status = StatusReconnecting
		b.setStatus(status)
		select {
		case <-ctx.Done():
			return
		case <-time.After(policy.Delay):
		}
	}
}
