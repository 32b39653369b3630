package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "fieldsync_test.db")
	cfg := DefaultConfig(dsn)
	cfg.Logger = logging.Discard()

	store, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_GetMissing(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.Get(context.Background(), "offline_reports")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	require.NoError(t, store.Set(ctx, "offline_reports", "[]"))
	require.NoError(t, store.Set(ctx, "offline_reports", `[{"id":"x"}]`))

	v, err := store.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"x"}]`, v)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := New(&Config{DataSourceName: dsn, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", "v"))
	require.NoError(t, s1.Close())

	s2, err := New(&Config{DataSourceName: dsn, Logger: logging.Discard()})
	require.NoError(t, err)
	defer s2.Close()
	v, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Set(ctx, fmt.Sprintf("key-%d", i), "v"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		_, err := store.Get(ctx, fmt.Sprintf("key-%d", i))
		assert.NoError(t, err)
	}
}

func TestStoreContextCancellation(t *testing.T) {
	store := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Set(ctx, "k", "v")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Closed(t *testing.T) {
	store := setupTestDB(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "double close is a no-op")

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, storage.ErrClosed)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Logger: logging.Discard()})
	assert.Error(t, err)

	_, err = New(&Config{DataSourceName: ":memory:", TableName: "bad;name", Logger: logging.Discard()})
	assert.Error(t, err)
}

func TestConfig_WALSuffix(t *testing.T) {
	cfg := DefaultConfig("file:test.db?cache=shared")
	cfg.Logger = logging.Discard()
	cfg.setDefaults()
	assert.Equal(t, "file:test.db?cache=shared&_journal_mode=WAL", cfg.DataSourceName)
}
