package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Watch calls fn with the key of every value written to the table by
// another Store or process, until ctx is done. It blocks. The pq.Listener reconnects on its
// own; a reconnect can drop notifications, so fn is also called with an
// empty key after each reconnect to let the caller resynchronise.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	deliver := s.origin.Filter(fn)
	reconnected := make(chan struct{}, 1)
	listener := pq.NewListener(
		s.config.ConnectionString,
		s.config.ReconnectInterval,
		time.Minute,
		func(event pq.ListenerEventType, err error) {
			switch event {
			case pq.ListenerEventConnected:
				s.logger.Debug("connected for LISTEN/NOTIFY", slog.String("channel", s.channel))
			case pq.ListenerEventDisconnected:
				s.logger.Warn("disconnected from PostgreSQL", slog.Any("error", err))
			case pq.ListenerEventReconnected:
				s.logger.Info("reconnected to PostgreSQL")
				select {
				case reconnected <- struct{}{}:
				default:
				}
			case pq.ListenerEventConnectionAttemptFailed:
				s.logger.Warn("connection attempt failed", slog.Any("error", err))
			}
		},
	)
	defer listener.Close()

	if err := listener.Listen(s.channel); err != nil {
		return fmt.Errorf("failed to listen to channel %s: %w", s.channel, err)
	}

	ping := time.NewTicker(s.config.NotificationTimeout)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect
			if n != nil {
				deliver(n.Extra)
			}
		case <-reconnected:
			fn("")
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				s.logger.Warn("listener ping failed", slog.Any("error", err))
			}
		}
	}
}
