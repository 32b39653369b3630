package synckit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StartPeriodicSync runs a silent sync for ownerID every interval until ctx
// is done or stop is called. A tick that lands while a run is in progress
// is a no-op. stop waits for the loop to exit.
func (e *Engine) StartPeriodicSync(ctx context.Context, ownerID int64, interval time.Duration) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.Run(ctx, ownerID, false); err != nil && ctx.Err() == nil {
					e.logger.LogError(ctx, err, "periodic sync failed", slog.Int64("owner_id", ownerID))
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
