// Package memory provides an in-process storage.Backend.
package memory

import (
	"context"
	"sync"

	"github.com/c0deZ3R0/fieldsync/storage"
)

// Store keeps values in a map. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

var _ storage.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", storage.ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.data[key] = value
	return nil
}

// Close marks the store closed. Stored values are dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}
