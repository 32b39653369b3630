package synckit

import (
	"time"

	"github.com/c0deZ3R0/fieldsync/logging"
)

const (
	// DefaultSettleDelay is how long auto sync waits after the network
	// comes back before running.
	DefaultSettleDelay = 2000 * time.Millisecond

	// DefaultSubmitTimeout bounds one create-report call.
	DefaultSubmitTimeout = 30 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNotifier sets where interactive notifications go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(m MetricsCollector) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settleDelay = d
		}
	}
}

// WithSubmitTimeout overrides DefaultSubmitTimeout.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.submitTimeout = d
		}
	}
}

// WithProbeTimeout sets the timeout passed to the prober. Zero uses the
// prober's own default.
func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.probeTimeout = d
	}
}
