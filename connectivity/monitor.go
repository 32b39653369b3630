// Package connectivity answers two questions: does the platform report a
// network link (Monitor), and can the server actually be reached (Prober).
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/pubsub"
)

// Monitor holds the device's network-presence flag and fans out
// online/offline transitions to listeners.
type Monitor struct {
	online      atomic.Bool
	transitions *pubsub.Emitter[bool]
	logger      *logging.Logger
}

// NewMonitor returns a Monitor whose flag starts at initial.
func NewMonitor(initial bool, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("connectivity"))
	}
	m := &Monitor{
		transitions: pubsub.New[bool](logger),
		logger:      logger,
	}
	m.online.Store(initial)
	return m
}

// Online reports the current flag.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline updates the flag. Listeners are notified synchronously, and
// only when the value actually changes; the return value says whether it did.
func (m *Monitor) SetOnline(online bool) bool {
	if !m.online.CompareAndSwap(!online, online) {
		return false
	}
	m.logger.Info("network state changed", slog.Bool("online", online))
	m.transitions.Emit(online)
	return true
}

// AddListener subscribes to transitions. Either callback may be nil. The
// returned function removes the subscription.
func (m *Monitor) AddListener(onOnline, onOffline func()) (unsubscribe func()) {
	return m.transitions.Subscribe(func(online bool) {
		switch {
		case online && onOnline != nil:
			onOnline()
		case !online && onOffline != nil:
			onOffline()
		}
	})
}

// CheckFunc reports whether the platform currently has a usable link.
type CheckFunc func() bool

// Watch polls check every interval and feeds the result to SetOnline until
// ctx is done. A nil check uses InterfacesUp.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, check CheckFunc) {
	if check == nil {
		check = InterfacesUp
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	m.SetOnline(check())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(check())
		}
	}
}

// InterfacesUp reports whether any non-loopback interface is up and has an
// address assigned.
func InterfacesUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
