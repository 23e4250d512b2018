package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/agentstation/tally/pkg/errors"
)

// MemorySpace is an in-process key-value space shared by MemoryBackend
// handles. Each handle plays the part of one process attached to the space:
// a write never runs another handle's watcher, it queues the change for it.
type MemorySpace struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[string]map[*memoryWatch]struct{}
}

// NewMemorySpace creates an empty space.
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{
		data:     make(map[string][]byte),
		watchers: make(map[string]map[*memoryWatch]struct{}),
	}
}

// Open returns a new handle onto the space.
func (s *MemorySpace) Open() *MemoryBackend {
	return &MemoryBackend{space: s}
}

type memoryChange struct {
	value   []byte
	deleted bool
}

// memoryWatch delivers queued changes to fn, in order, on its own goroutine.
type memoryWatch struct {
	owner *MemoryBackend
	fn    ChangeFunc

	mu      sync.Mutex
	pending []memoryChange
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newMemoryWatch(owner *MemoryBackend, fn ChangeFunc) *memoryWatch {
	w := &memoryWatch{
		owner: owner,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *memoryWatch) push(c memoryChange) {
	w.mu.Lock()
	w.pending = append(w.pending, c)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *memoryWatch) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *memoryWatch) loop() {
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}
		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, c := range batch {
			select {
			case <-w.done:
				return
			default:
			}
			w.fn(c.value, c.deleted)
		}
	}
}

// notify queues the change for the watchers of key held by other handles.
// The caller holds s.mu, so queues follow the order of writes.
func (s *MemorySpace) notify(writer *MemoryBackend, key string, value []byte, deleted bool) {
	for w := range s.watchers[key] {
		if w.owner == writer {
			continue
		}
		if deleted {
			w.push(memoryChange{deleted: true})
			continue
		}
		w.push(memoryChange{value: bytes.Clone(value)})
	}
}

// MemoryBackend is a handle onto a MemorySpace.
type MemoryBackend struct {
	space *MemorySpace

	mu      sync.Mutex
	watches []*memoryWatch
	closed  bool
}

// NewMemoryBackend returns a handle onto a fresh private space.
func NewMemoryBackend() *MemoryBackend {
	return NewMemorySpace().Open()
}

// Space returns the space this handle belongs to.
func (b *MemoryBackend) Space() *MemorySpace {
	return b.space
}

// Get returns a copy of the stored value.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	b.space.mu.Lock()
	defer b.space.mu.Unlock()
	data, ok := b.space.data[key]
	if !ok {
		return nil, errors.NewNotFoundError("key", key)
	}
	return bytes.Clone(data), nil
}

// Set stores a copy of value and notifies other handles.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	data := bytes.Clone(value)
	if data == nil {
		data = []byte{}
	}
	b.space.mu.Lock()
	defer b.space.mu.Unlock()
	b.space.data[key] = data
	b.space.notify(b, key, data, false)
	return nil
}

// Delete removes key and notifies other handles.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	b.space.mu.Lock()
	defer b.space.mu.Unlock()
	delete(b.space.data, key)
	b.space.notify(b, key, nil, true)
	return nil
}

// Watch registers fn for changes of key made through other handles.
func (b *MemoryBackend) Watch(ctx context.Context, key string, fn ChangeFunc) (func(), error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	w := newMemoryWatch(b, fn)

	b.space.mu.Lock()
	if b.space.watchers[key] == nil {
		b.space.watchers[key] = make(map[*memoryWatch]struct{})
	}
	b.space.watchers[key][w] = struct{}{}
	b.space.mu.Unlock()

	b.mu.Lock()
	b.watches = append(b.watches, w)
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.space.mu.Lock()
			delete(b.space.watchers[key], w)
			b.space.mu.Unlock()
			w.stop()
		})
	}
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			stop()
		}()
	}
	return stop, nil
}

// Close detaches every watcher of this handle. The space keeps its data.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	watches := b.watches
	b.watches = nil
	b.mu.Unlock()

	b.space.mu.Lock()
	for _, set := range b.space.watchers {
		for _, w := range watches {
			delete(set, w)
		}
	}
	b.space.mu.Unlock()
	for _, w := range watches {
		w.stop()
	}
	return nil
}

func (b *MemoryBackend) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrClosed
	}
	return nil
}
