package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/storage"
)

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "offline_reports")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "offline_reports", "[]"))
	v, err := s.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	require.NoError(t, s.Set(ctx, "offline_reports", `[{"id":"a"}]`))
	v, err = s.Get(ctx, "offline_reports")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), storage.ErrClosed)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
}
