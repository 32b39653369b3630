// Package pubsub provides a small typed event emitter.
package pubsub

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/c0deZ3R0/fieldsync/logging"
)

// Emitter delivers values of type T to subscribed listeners. Emit is
// synchronous; a listener that panics is logged and does not stop delivery
// to the others. The zero value is not usable; call New.
type Emitter[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]func(T)
	order     []uint64
	next      uint64
	logger    *logging.Logger
}

// New returns an Emitter that logs listener panics to logger (or the
// default logger when nil).
func New[T any](logger *logging.Logger) *Emitter[T] {
	if logger == nil {
		logger = logging.WithComponent(logging.Component("pubsub"))
	}
	return &Emitter[T]{
		listeners: make(map[uint64]func(T)),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is idempotent.
func (e *Emitter[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.next
	e.next++
	e.listeners[id] = fn
	e.order = append(e.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.listeners, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
}

// Emit calls every listener registered at the time of the call, in
// subscription order, and returns the number of listeners that panicked.
func (e *Emitter[T]) Emit(value T) (panicked int) {
	e.mu.RLock()
	snapshot := make([]func(T), 0, len(e.order))
	for _, id := range e.order {
		snapshot = append(snapshot, e.listeners[id])
	}
	e.mu.RUnlock()

	for i, fn := range snapshot {
		if e.call(i, fn, value) {
			panicked++
		}
	}
	return panicked
}

func (e *Emitter[T]) call(i int, fn func(T), value T) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			e.logger.Error("listener panicked",
				slog.Int("listener", i),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(value)
	return false
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}
