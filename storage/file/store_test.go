package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/storage"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "offline_reports")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "offline_reports", `[{"id":"offline_1_a"}]`))
	v, err := s.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"offline_1_a"}]`, v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "offline_reports.json", entries[0].Name())
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "q", "value"))
	require.NoError(t, s1.Close())

	s2, err := New(dir)
	require.NoError(t, err)
	v, err := s2.Get(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestStore_InvalidKey(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".."} {
		err := s.Set(context.Background(), key, "x")
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestStore_Closed(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Set(context.Background(), "k", "v"), storage.ErrClosed)
}
