package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrigin_Foreign(t *testing.T) {
	self := Origin("a1")

	tests := []struct {
		name    string
		payload string
		wantKey string
		wantOK  bool
	}{
		{"own write", "a1|offline_reports", "", false},
		{"other store", "b2|offline_reports", "offline_reports", true},
		{"untagged", "offline_reports", "offline_reports", true},
		{"external writer", "|offline_reports", "offline_reports", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := self.Foreign(tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantKey, key)
		})
	}

	assert.NotEqual(t, NewOrigin(), NewOrigin())
	assert.Equal(t, "a1|k", self.Tag("k"))
}

// sharedBus is one backend shared by two processes. It echoes every write
// to every watcher, as Redis pub/sub and Postgres NOTIFY do.
type sharedBus struct {
	mu       sync.Mutex
	values   map[string]string
	watchers []func(payload string)
}

type sharedStore struct {
	bus    *sharedBus
	origin Origin
}

func (s *sharedStore) Get(_ context.Context, key string) (string, error) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	v, ok := s.bus.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *sharedStore) Set(_ context.Context, key, value string) error {
	s.bus.mu.Lock()
	s.bus.values[key] = value
	watchers := append([]func(string){}, s.bus.watchers...)
	s.bus.mu.Unlock()
	for _, w := range watchers {
		w(s.origin.Tag(key))
	}
	return nil
}

func (s *sharedStore) watch(fn func(key string)) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.watchers = append(s.bus.watchers, s.origin.Filter(fn))
}

func TestOrigin_FilterSkipsOwnWrites(t *testing.T) {
	bus := &sharedBus{values: map[string]string{}}
	device := &sharedStore{bus: bus, origin: NewOrigin()}
	other := &sharedStore{bus: bus, origin: NewOrigin()}

	var seen []string
	device.watch(func(key string) { seen = append(seen, key) })

	ctx := context.Background()
	require.NoError(t, device.Set(ctx, "offline_reports", "[]"))
	assert.Empty(t, seen, "a store must not be told about its own writes")

	require.NoError(t, other.Set(ctx, "offline_reports", `[{"id":"x"}]`))
	assert.Equal(t, []string{"offline_reports"}, seen)

	v, err := device.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"x"}]`, v)
}
