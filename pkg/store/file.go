package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
)

// FileBackend stores each key as a file under one directory. Writes go to a
// temp file that is renamed into place, so readers never see a partial slot.
type FileBackend struct {
	dir      string
	debounce time.Duration
	logger   *zerolog.Logger

	mu       sync.Mutex
	own      map[string]fileState
	watchers map[*fileWatch]struct{}
	closed   bool
}

// fileState is the content of a key as last written by this handle.
type fileState struct {
	data   []byte
	exists bool
}

func (s fileState) equal(o fileState) bool {
	return s.exists == o.exists && bytes.Equal(s.data, o.data)
}

// FileOption configures a FileBackend.
type FileOption func(*FileBackend)

// WithFileLogger sets the logger.
func WithFileLogger(logger *zerolog.Logger) FileOption {
	return func(b *FileBackend) {
		b.logger = logger
	}
}

// WithDebounce sets how long the watcher waits for a burst of file events to
// settle before reading the file.
func WithDebounce(d time.Duration) FileOption {
	return func(b *FileBackend) {
		if d > 0 {
			b.debounce = d
		}
	}
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string, opts ...FileOption) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.NewValidationError("dir", dir, "store directory is required")
	}
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	b := &FileBackend{
		dir:      dir,
		debounce: constants.WatchDebounce,
		own:      make(map[string]fileState),
		watchers: make(map[*fileWatch]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.Component(b.logger, "store.file")
	return b, nil
}

// Dir returns the directory holding the slot files.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file that holds key.
func (b *FileBackend) Path(key string) string {
	return filepath.Join(b.dir, fileName(key))
}

func fileName(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_")
	return r.Replace(key) + ".json"
}

// Get reads the file for key.
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("key", key)
		}
		return nil, errors.WrapIO("read", b.Path(key), err)
	}
	return data, nil
}

// Set atomically replaces the file for key.
func (b *FileBackend) Set(_ context.Context, key string, value []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	path := b.Path(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(b.dir, "."+fileName(key)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.WrapIO("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapIO("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapIO("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapIO("move", path, err)
	}

	b.own[key] = fileState{data: bytes.Clone(value), exists: true}
	return nil
}

// Delete removes the file for key. Deleting a missing key is not an error.
func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.Path(key)); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("delete", b.Path(key), err)
	}
	b.own[key] = fileState{}
	return nil
}

// Watch observes the directory rather than the file: an atomic rename
// replaces the inode, which a file-level watch would miss.
func (b *FileBackend) Watch(ctx context.Context, key string, fn ChangeFunc) (func(), error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO("watch", b.dir, err)
	}
	if err := watcher.Add(b.dir); err != nil {
		_ = watcher.Close()
		return nil, errors.WrapIO("watch", b.dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &fileWatch{
		backend: b,
		key:     key,
		name:    fileName(key),
		fn:      fn,
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	w.seen = b.read(key)

	b.mu.Lock()
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	go w.loop(ctx)

	b.logger.Debug().Str("key", key).Str("dir", b.dir).Msg("Watching slot")
	return w.stop, nil
}

// Close stops every watcher.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	watchers := make([]*fileWatch, 0, len(b.watchers))
	for w := range b.watchers {
		watchers = append(watchers, w)
	}
	b.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
	return nil
}

func (b *FileBackend) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.ErrClosed
	}
	return nil
}

func (b *FileBackend) read(key string) fileState {
	data, err := os.ReadFile(b.Path(key))
	if err != nil {
		return fileState{}
	}
	return fileState{data: data, exists: true}
}

func (b *FileBackend) ownState(key string) (fileState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.own[key]
	return s, ok
}

type fileWatch struct {
	backend *FileBackend
	key     string
	name    string
	fn      ChangeFunc
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once

	// seen is the last content this watcher observed on disk.
	seen fileState
}

func (w *fileWatch) stop() {
	w.once.Do(func() {
		w.cancel()
		<-w.done
		w.backend.mu.Lock()
		delete(w.backend.watchers, w)
		w.backend.mu.Unlock()
	})
}

func (w *fileWatch) loop(ctx context.Context) {
	defer close(w.done)
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(w.backend.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			// coalesce bursts: restart the settle window
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.backend.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.backend.logger.Warn().Err(err).Str("key", w.key).Msg("Slot watcher error")

		case <-timer.C:
			w.check()
		}
	}
}

// check reads the file and reports it when it differs from what this watcher
// last saw and from what this handle last wrote.
func (w *fileWatch) check() {
	current := w.backend.read(w.key)
	if current.equal(w.seen) {
		return
	}
	w.seen = current

	if own, ok := w.backend.ownState(w.key); ok && own.equal(current) {
		return
	}

	w.backend.logger.Debug().
		Str("key", w.key).
		Bool("deleted", !current.exists).
		Msg("External slot change")

	if !current.exists {
		w.fn(nil, true)
		return
	}
	w.fn(current.data, false)
}
