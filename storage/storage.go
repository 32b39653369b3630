// Package storage defines the key-value contract the offline queue is
// persisted through. A backend stores whole string values under string keys;
// there are no partial updates and no transactions beyond a single Set.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned by Get when no value is stored under the key.
	ErrNotFound = errors.New("storage: key not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("storage: store is closed")
)

// KeyValueStore is the persistence contract used by the offline repository.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key, value string) error
}

// Backend is a KeyValueStore that owns resources and must be closed.
type Backend interface {
	KeyValueStore
	io.Closer
}

// Watcher is implemented by backends that can report writes made by other
// processes. Writes made through the same Store are not reported. Watch
// blocks until ctx is done, calling fn with each changed key. An empty key
// means changes may have been missed.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string)) error
}
