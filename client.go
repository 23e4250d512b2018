// Package tally keeps a live, locally persisted list of reported agreements.
//
// A Client reconciles three sources into one deduplicated list ordered newest
// first: the list restored from the persisted slot, the backend snapshot and
// the live push channel. It also mirrors changes other processes make to the
// same slot.
//
// Example usage:
//
//	api, _ := backend.New("http://localhost:5000")
//	ch, _ := channel.NewSocketIO("http://localhost:5000")
//	fb, _ := store.NewFileBackend(dir)
//
//	c, err := tally.New(
//	    tally.WithBackend(api),
//	    tally.WithChannel(ch),
//	    tally.WithStore(store.New(fb)),
//	    tally.WithTarget(100),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.OnChange(func(list records.List) {
//	    fmt.Printf("%d records, %d%%\n", list.Len(), c.Progress().Percent)
//	})
//
//	if err := c.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package tally

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
)

// ResetResult is the backend answer to a reset command.
type ResetResult = backend.ResetResult

// Client is the sync controller.
type Client interface {
	// Run restores the persisted list, reconciles it with the backend
	// snapshot and applies live events until ctx is done or Close is called.
	Run(ctx context.Context) error

	// Records returns a copy of the current list.
	Records() records.List

	// Progress returns the count against the target.
	Progress() Progress

	// State returns the lifecycle state.
	State() State

	// Reset asks the backend to drop every record and, on success, empties
	// the list and the slot. On failure the list is left untouched.
	Reset(ctx context.Context) (ResetResult, error)

	// Close tears the controller down and waits for Run to return.
	Close() error

	// Hooks provides access to event callback registration
	Hooks
}

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// client is the internal implementation of the Client interface.
type client struct {
	options *options
	logger  *zerolog.Logger
	hooks   *hooks

	// published state, read by any goroutine
	mu    sync.RWMutex
	list  records.List
	state State

	// offline serializes mutations made while the loop is not running
	offline sync.Mutex

	// lifecycle
	runMu   sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	inbox   chan event
	done    chan struct{} // closed when the loop stops accepting events
	stopped chan struct{} // closed when Run has returned
}

// New creates a Client. Without WithStore the list lives in memory only;
// without WithBackend no snapshot is fetched and Reset fails; without
// WithChannel no live events arrive.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	c := &client{
		options: o,
		logger:  logging.Component(o.logger, "tally"),
		hooks:   newHooks(),
		list:    records.List{},
		state:   StateIdle,
		inbox:   make(chan event, o.inboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	return c, nil
}

// Records returns a copy of the current list.
func (c *client) Records() records.List {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.list.Clone()
}

// Progress returns the count against the configured target.
func (c *client) Progress() Progress {
	c.mu.RLock()
	n := len(c.list)
	c.mu.RUnlock()
	return NewProgress(n, c.options.target)
}

// State returns the lifecycle state.
func (c *client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
