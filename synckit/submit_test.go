package synckit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/offline"
	"github.com/c0deZ3R0/fieldsync/report"
	"github.com/c0deZ3R0/fieldsync/storage/memory"
)

func TestSubmitOrQueue_SubmitsWhenReachable(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.SubmitOrQueue(context.Background(), 7, inspection(42, "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, out.Submitted)
	assert.False(t, out.Queued)
	assert.Equal(t, int64(1001), out.ServerID)
	assert.False(t, out.Duplicates.HasDuplicates)

	n, err := f.repo.CountByOwner(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitOrQueue_QueuesWhenUnreachable(t *testing.T) {
	f := newFixture(t)
	f.prober.reachable.Store(false)

	out, err := f.engine.SubmitOrQueue(context.Background(), 7, inspection(42, "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, out.Queued)
	assert.NotEmpty(t, out.LocalID)
	assert.Empty(t, f.submitter.submitted())

	entry, ok, err := f.repo.Get(context.Background(), out.LocalID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, entry.Attempts)
	assert.Equal(t, int64(7), entry.OwnerID)

	notes := f.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, LevelWarning, notes[0].Level)
}

func TestSubmitOrQueue_QueuesOnAnyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"server error", syncErrors.NewRemoteError(syncErrors.OpSubmit, 502, errors.New("bad gateway"))},
		{"rejected", syncErrors.NewRemoteError(syncErrors.OpSubmit, 400, errors.New("invalid date"))},
		{"network", syncErrors.NewNetworkError(syncErrors.OpSubmit, errors.New("connection reset"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.submitter.fn = func(context.Context, int64, report.Payload) (report.CreateResult, error) {
				return report.CreateResult{}, tt.err
			}

			out, err := f.engine.SubmitOrQueue(context.Background(), 7, inspection(42, "2024-05-01"))
			require.NoError(t, err)
			assert.False(t, out.Submitted)
			assert.True(t, out.Queued)
			assert.Equal(t, tt.err.Error(), out.Reason)

			n, err := f.repo.CountByOwner(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestSubmitOrQueue_ReportsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.prober.reachable.Store(false)
	ctx := context.Background()

	_, err := f.engine.SubmitOrQueue(ctx, 7, inspection(42, "2024-05-01"))
	require.NoError(t, err)
	out, err := f.engine.SubmitOrQueue(ctx, 7, inspection(42, "2024-05-01"))
	require.NoError(t, err)

	assert.Equal(t, offline.DuplicateReport{HasDuplicates: true, Count: 1}, out.Duplicates)
	assert.True(t, out.Queued, "duplicates are advisory")

	n, err := f.repo.CountByOwner(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSubmitOrQueue_CallerGoneStillQueues(t *testing.T) {
	f := newFixture(t)
	f.submitter.fn = func(ctx context.Context, _ int64, _ report.Payload) (report.CreateResult, error) {
		return report.CreateResult{}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.engine.SubmitOrQueue(ctx, 7, inspection(42, "2024-05-01"))
	require.NoError(t, err)
	assert.True(t, out.Queued)

	entry, ok, err := f.repo.Get(context.Background(), out.LocalID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), entry.Payload.ClientID)
	for _, n := range f.notifier.all() {
		assert.NotEqual(t, LevelError, n.Level)
	}
}

func TestSubmitOrQueue_StorageFailure(t *testing.T) {
	broken := &brokenStore{KeyValueStore: memory.New(), setErr: errors.New("quota exceeded")}
	repo := offline.New(broken, offline.WithLogger(logging.Discard()))
	prober := newTestProber(false)
	notes := &recordingNotifier{}
	e, err := NewEngine(repo, &testSubmitter{}, prober, WithLogger(logging.Discard()), WithNotifier(notes))
	require.NoError(t, err)

	out, err := e.SubmitOrQueue(context.Background(), 7, inspection(42, "2024-05-01"))
	require.Error(t, err)
	assert.True(t, syncErrors.IsStorageFailure(err))
	assert.ErrorIs(t, err, offline.ErrSaveFailed)
	assert.False(t, out.Queued)

	require.Len(t, notes.all(), 1)
	assert.Equal(t, LevelError, notes.all()[0].Level)
}
