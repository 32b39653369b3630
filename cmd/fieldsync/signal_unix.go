//go:build unix

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c0deZ3R0/fieldsync/logging"
)

// handleLevelSignals toggles debug logging on SIGUSR1.
func handleLevelSignals(ctx context.Context, level *logging.DynamicLevelVar, logger *logging.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	done := make(chan struct{})
	base := level.Level()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				next := "debug"
				if level.Level() <= slog.LevelDebug {
					next = base.String()
				}
				level.SetFromString(next)
				logger.Info("log level changed", slog.String("level", level.Level().String()))
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		<-done
	}
}
