package synckit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SetupAutoSync runs a silent sync for ownerID each time the network comes
// back, after the settle delay. Another online transition during the delay
// restarts it; going offline cancels it. The returned function removes the
// listener, stops any pending run, cancels a run already in flight and waits
// for it to return. It must not be called from an OnSyncComplete listener.
func (e *Engine) SetupAutoSync(ownerID int64) (unsubscribe func()) {
	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
		running sync.WaitGroup
	)
	runCtx, cancelRuns := context.WithCancel(context.Background())

	cancelPending := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}

	onOnline := func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		cancelPending()
		e.logger.Debug("network online, scheduling sync",
			slog.Int64("owner_id", ownerID),
			slog.Duration("settle_delay", e.settleDelay),
		)

		var t *time.Timer
		t = time.AfterFunc(e.settleDelay, func() {
			mu.Lock()
			if stopped || timer != t {
				mu.Unlock()
				return
			}
			timer = nil
			running.Add(1)
			mu.Unlock()
			defer running.Done()

			if _, err := e.Run(runCtx, ownerID, false); err != nil {
				e.logger.LogError(runCtx, err, "auto sync failed", slog.Int64("owner_id", ownerID))
			}
		})
		timer = t
	}

	onOffline := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			e.logger.Debug("network offline, pending sync cancelled", slog.Int64("owner_id", ownerID))
		}
		cancelPending()
	}

	remove := e.prober.AddNetworkListener(onOnline, onOffline)

	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			mu.Lock()
			stopped = true
			cancelPending()
			mu.Unlock()
			cancelRuns()
			running.Wait()
		})
	}
}
