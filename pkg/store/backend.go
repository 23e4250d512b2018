// Package store persists the record list in a single key-value slot and
// reports changes that other processes make to it.
//
// A Backend moves raw bytes and signals foreign writes; Store layers the
// record list contract on top of a Backend: tolerant decoding, normalization
// of every element and restored list invariants.
package store

import (
	"context"
)

// ChangeFunc receives the new content of a watched key. deleted is true when
// the key was removed, in which case value is nil.
type ChangeFunc func(value []byte, deleted bool)

// Backend is a blob key-value store with change notification.
//
// Watch reports writes made through other handles only: a handle never
// observes its own Set or Delete.
type Backend interface {
	// Get returns the stored value, or an error matching errors.ErrNotFound
	// when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Watch calls fn for every foreign change of key until stop is called,
	// ctx is done or the backend is closed.
	Watch(ctx context.Context, key string, fn ChangeFunc) (stop func(), err error)
	Close() error
}

// Driver names a Backend implementation.
type Driver string

// Supported drivers.
const (
	DriverFile   Driver = "file"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// String returns the driver name.
func (d Driver) String() string {
	return string(d)
}

// Drivers returns all supported drivers.
func Drivers() []Driver {
	return []Driver{DriverFile, DriverRedis, DriverMemory}
}

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, bool) {
	for _, d := range Drivers() {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}
