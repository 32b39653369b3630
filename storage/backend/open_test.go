package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/storage/file"
	"github.com/c0deZ3R0/fieldsync/storage/memory"
	"github.com/c0deZ3R0/fieldsync/storage/sqlite"
)

func TestOpen_LocalDrivers(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts Options
		want any
	}{
		{name: "memory", opts: Options{Driver: "memory"}, want: &memory.Store{}},
		{name: "file", opts: Options{Driver: "file", DSN: filepath.Join(dir, "kv")}, want: &file.Store{}},
		{name: "sqlite", opts: Options{Driver: "SQLite", DSN: filepath.Join(dir, "q.db")}, want: &sqlite.Store{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = logging.Discard()
			b, err := Open(tt.opts)
			require.NoError(t, err)
			defer b.Close()
			assert.IsType(t, tt.want, b)

			require.NoError(t, b.Set(context.Background(), "k", "v"))
			v, err := b.Get(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, "v", v)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Options{Driver: "sqlite"})
	assert.ErrorContains(t, err, "requires a DSN")

	_, err = Open(Options{Driver: "bolt", DSN: "x"})
	assert.ErrorContains(t, err, "unknown storage driver")
}
