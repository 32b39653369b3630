package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/c0deZ3R0/fieldsync/report"
	"github.com/c0deZ3R0/fieldsync/storage"
)

// cmdWatch keeps the process alive, syncing the owner's queue when the
// network comes back, on the periodic interval, and when another process
// writes to a shared backend.
func cmdWatch(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("watch")
	owner := fs.Int64("owner", 0, "technician (owner) id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	unsubResults := a.engine.OnSyncComplete(func(results []report.SyncResult) {
		s := report.Summarize(results)
		fmt.Fprintf(stdout, "sync: %d synced, %d failed\n", s.Succeeded, s.Failed)
	})
	defer unsubResults()

	unsubAuto := a.engine.SetupAutoSync(*owner)
	defer unsubAuto()

	stopPeriodic := a.engine.StartPeriodicSync(ctx, *owner, a.cfg.PeriodicInterval())
	defer stopPeriodic()

	stopLevels := handleLevelSignals(ctx, a.level, a.logger)
	defer stopLevels()

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.monitor.Watch(ctx, a.cfg.WatchInterval(), nil)
	}()

	if w, ok := a.store.(storage.Watcher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Watch(ctx, syncOnQueueChange(ctx, a, *owner))
			if err != nil && ctx.Err() == nil {
				a.logger.LogError(ctx, err, "queue change feed stopped")
			}
		}()
	}

	a.logger.Info("watching for connectivity changes",
		slog.Int64("owner_id", *owner),
		slog.Bool("online", a.monitor.Online()),
		slog.Duration("settle_delay", a.cfg.SettleDelay()),
		slog.Duration("periodic_interval", a.cfg.PeriodicInterval()),
	)

	// catch up on anything queued while nobody was watching
	if _, err := a.engine.Run(ctx, *owner, false); err != nil && ctx.Err() == nil {
		a.logger.LogError(ctx, err, "initial sync failed")
	}

	<-ctx.Done()
	a.logger.Info("stopping",
		slog.Int64("synced", a.metrics.Succeeded.Load()),
		slog.Int64("failed", a.metrics.Failed.Load()),
	)
	return nil
}

// syncOnQueueChange returns the Watcher callback for cmdWatch. It syncs only
// when the owner's queue holds an entry no run has tried yet. Attempt
// bookkeeping written by another watcher's failed run is not new work, and
// answering it would trade retries back and forth until they run out.
func syncOnQueueChange(ctx context.Context, a *app, ownerID int64) func(key string) {
	return func(key string) {
		if key != "" && key != a.cfg.Storage.Key {
			return
		}
		entries, err := a.repo.ListByOwner(ctx, ownerID)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.LogError(ctx, err, "failed to read queue after change")
			}
			return
		}
		if !hasUntried(entries) {
			a.logger.Debug("queue change has no new reports", slog.Int64("owner_id", ownerID))
			return
		}
		if _, err := a.engine.Run(ctx, ownerID, false); err != nil && ctx.Err() == nil {
			a.logger.LogError(ctx, err, "sync after queue change failed")
		}
	}
}

func hasUntried(entries []report.PendingReport) bool {
	for _, e := range entries {
		if e.Attempts == 0 {
			return true
		}
	}
	return false
}
