package redis

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage"
)

// setupTestStore connects to FIELDSYNC_TEST_REDIS and skips when it is unset.
// Each test gets its own key prefix.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("FIELDSYNC_TEST_REDIS")
	if url == "" {
		t.Skip("FIELDSYNC_TEST_REDIS not set")
	}
	store, err := New(&Config{
		URL:       url,
		KeyPrefix: "fieldsync-test:" + uuid.NewString() + ":",
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.Get(ctx, "offline_reports")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, "offline_reports", `[{"id":"a"}]`))
	v, err := store.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)
}

func TestStore_WatchReportsOnlyOtherWriters(t *testing.T) {
	store := setupTestStore(t)
	// a second Store on the same keys, as another process would open
	other := NewFromClient(store.client, store.prefix, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Watch(ctx, func(key string) {
			if key == "offline_reports" {
				seen.Add(1)
			}
		})
	}()

	// wait for the subscription
	assert.Eventually(t, func() bool {
		_ = other.Set(context.Background(), "offline_reports", "[]")
		return seen.Load() > 0
	}, 3*time.Second, 100*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	base := seen.Load()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(context.Background(), "offline_reports", "[]"))
	}
	require.NoError(t, other.Set(context.Background(), "offline_reports", `[{"id":"b"}]`))

	assert.Eventually(t, func() bool { return seen.Load() == base+1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, base+1, seen.Load(), "own writes must not be reported")

	cancel()
	<-done
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(&Config{URL: "not-a-url://", Logger: logging.Discard()})
	assert.Error(t, err)
}
