package tally

import (
	"context"

	"github.com/agentstation/tally/pkg/channel"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
)

// event is one unit of work applied on the loop goroutine.
type event struct {
	name  string
	apply func()
}

// Run restores the persisted list, fetches the snapshot and applies live
// events until ctx is done or Close is called. It returns nil on a clean stop.
func (c *client) Run(ctx context.Context) error {
	c.runMu.Lock()
	if c.closed {
		c.runMu.Unlock()
		return errors.ErrClosed
	}
	if c.started {
		c.runMu.Unlock()
		return errors.NewValidationError("client", "running", "client already started")
	}
	c.started = true
	ctx, cancel := context.WithCancel(logging.WithLogger(ctx, c.logger))
	c.cancel = cancel
	c.runMu.Unlock()

	defer close(c.stopped)
	defer cancel()

	st := c.options.store
	ch := c.options.channel

	// optimistic display of the last known list
	c.setState(StateInitializing)
	c.replace(st.Load(ctx))
	c.logger.Info().Int("records", len(c.list)).Str("key", st.Key()).Msg("Restored records")

	stopObserve, err := st.Observe(ctx, func(list records.List) {
		c.post(event{name: "external", apply: func() { c.applyExternal(list) }})
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", st.Key()).Msg("Cannot observe slot, external changes will be missed")
		stopObserve = func() {}
	}

	unsubscribe := ch.Subscribe(constants.UpdateEvent, func(msg channel.Message) {
		c.post(event{name: msg.Event, apply: func() { c.applyMessage(ctx, msg) }})
	})
	if err := ch.Open(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Cannot open push channel")
	}

	if c.options.backend != nil && !c.options.snapshotDisabled {
		c.setState(StateReconciling)
		go c.fetchSnapshot(ctx)
	} else {
		c.setState(StateLive)
	}

	chDone := ch.Done()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev := <-c.inbox:
			ev.apply()
		case <-chDone:
			chDone = nil
			if err := ch.Err(); err != nil {
				c.logger.Warn().Err(err).Msg("Push channel stopped, continuing on snapshot and slot changes")
			}
		}
	}

	// teardown: late posts are dropped from here on
	c.runMu.Lock()
	close(c.done)
	c.runMu.Unlock()

	unsubscribe()
	stopObserve()
	if err := ch.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Closing push channel")
	}
	c.setState(StateClosed)
	return nil
}

// Close stops Run and waits for it to return. Closing a client that never
// ran closes its channel.
func (c *client) Close() error {
	c.runMu.Lock()
	if c.closed {
		c.runMu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	cancel := c.cancel
	c.runMu.Unlock()

	if started {
		cancel()
		<-c.stopped
		return nil
	}

	close(c.done)
	err := c.options.channel.Close()
	c.setState(StateClosed)
	return err
}

// post hands ev to the loop. It reports false once the loop has stopped.
func (c *client) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.inbox <- ev:
		return true
	case <-c.done:
		c.logger.Debug().Str("event", ev.name).Msg("Dropped event after teardown")
		return false
	}
}

// mutate applies fn on the loop when it is running and waits for it;
// otherwise fn runs inline.
func (c *client) mutate(ctx context.Context, name string, fn func()) error {
	c.runMu.Lock()
	active := c.started && !c.isDone()
	c.runMu.Unlock()

	if active {
		applied := make(chan struct{})
		if c.post(event{name: name, apply: func() { fn(); close(applied) }}) {
			select {
			case <-applied:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stopped:
				select {
				case <-applied:
					return nil
				default:
				}
			}
		}
	}

	c.offline.Lock()
	defer c.offline.Unlock()
	fn()
	return nil
}

func (c *client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fetchSnapshot reads the backend snapshot and posts the result. A failed
// read leaves the restored list in place; there is no retry.
func (c *client) fetchSnapshot(ctx context.Context) {
	payloads, err := c.options.backend.Entries(ctx)
	c.post(event{name: "snapshot", apply: func() {
		if err != nil {
			c.logger.Warn().Err(err).Msg("Snapshot unavailable, keeping restored records")
		} else {
			incoming := c.options.normalizer.NormalizeAll(payloads)
			c.replace(records.Merge(c.list, incoming))
			c.persist(ctx)
			c.logger.Info().Int("snapshot", len(incoming)).Int("records", len(c.list)).Msg("Reconciled with snapshot")
		}
		c.setState(StateLive)
	}})
}

// applyMessage applies one form_update event.
func (c *client) applyMessage(ctx context.Context, msg channel.Message) {
	if msg.IsReset() {
		c.clear(ctx)
		c.logger.Info().Msg("Reset received")
		return
	}

	p, err := msg.Payload()
	if err != nil {
		c.logger.Warn().Err(err).Str("event", msg.Event).Msg("Ignoring malformed event")
		return
	}
	r := c.options.normalizer.Normalize(p)
	isNew := !c.list.Contains(r.Key())

	c.replace(records.Upsert(c.list, r))
	c.persist(ctx)

	c.logger.Debug().Str("key", r.Key()).Bool("new", isNew).Msg("Applied record")
	if isNew {
		c.hooks.triggerRecord(r)
	}
}

// applyExternal mirrors a slot change made by another process. The list is
// taken as is and not written back.
func (c *client) applyExternal(list records.List) {
	c.replace(records.Merge(nil, list))
	c.logger.Debug().Int("records", len(list)).Msg("Applied external slot change")
}

// clear empties the list and the slot.
func (c *client) clear(ctx context.Context) {
	c.replace(records.List{})
	_ = c.options.store.Clear(ctx)
}

// persist writes the current list. Failures are logged by the store and only
// cost durability.
func (c *client) persist(ctx context.Context) {
	_ = c.options.store.Save(ctx, c.list)
}

// replace publishes list and notifies change hooks.
func (c *client) replace(list records.List) {
	if list == nil {
		list = records.List{}
	}
	c.mu.Lock()
	c.list = list
	c.mu.Unlock()
	c.hooks.triggerChange(list)
}

func (c *client) setState(to State) {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("State changed")
	c.hooks.triggerStateChange(from, to)
}
