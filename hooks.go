package tally

import (
	"sync"

	"github.com/agentstation/tally/pkg/records"
)

// Hook function types for controller events. Hooks run on the controller's
// event loop in registration order and must not block.
type (
	// ChangeHook is called with a copy of the list after every replacement
	ChangeHook func(list records.List)

	// StateHook is called on every lifecycle transition
	StateHook func(from, to State)

	// RecordHook is called when a live event adds a record with a new identity key
	RecordHook func(record records.Record)
)

// Hooks provides event callback registration.
type Hooks interface {
	OnChange(ChangeHook)
	OnStateChange(StateHook)
	OnRecord(RecordHook)
}

// hooks manages event callbacks
type hooks struct {
	mu            sync.RWMutex
	onChange      []ChangeHook
	onStateChange []StateHook
	onRecord      []RecordHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnChange registers a callback for list replacements
func (h *hooks) OnChange(fn ChangeHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnStateChange registers a callback for lifecycle transitions
func (h *hooks) OnStateChange(fn StateHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStateChange = append(h.onStateChange, fn)
}

// OnRecord registers a callback for newly applied live records
func (h *hooks) OnRecord(fn RecordHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecord = append(h.onRecord, fn)
}

func (h *hooks) triggerChange(list records.List) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onChange {
		fn(list.Clone())
	}
}

func (h *hooks) triggerStateChange(from, to State) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onStateChange {
		fn(from, to)
	}
}

func (h *hooks) triggerRecord(r records.Record) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onRecord {
		fn(r)
	}
}

// OnChange registers a callback for list replacements
func (c *client) OnChange(fn ChangeHook) {
	c.hooks.OnChange(fn)
}

// OnStateChange registers a callback for lifecycle transitions
func (c *client) OnStateChange(fn StateHook) {
	c.hooks.OnStateChange(fn)
}

// OnRecord registers a callback for newly applied live records
func (c *client) OnRecord(fn RecordHook) {
	c.hooks.OnRecord(fn)
}
