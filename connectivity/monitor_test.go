package connectivity

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/c0deZ3R0/fieldsync/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// idle keep-alive connections of the probe client
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestMonitor_TransitionsOnlyOnChange(t *testing.T) {
	m := NewMonitor(false, logging.Discard())
	var ups, downs int
	m.AddListener(func() { ups++ }, func() { downs++ })

	assert.False(t, m.SetOnline(false))
	assert.True(t, m.SetOnline(true))
	assert.False(t, m.SetOnline(true))
	assert.True(t, m.SetOnline(false))

	assert.Equal(t, 1, ups)
	assert.Equal(t, 1, downs)
	assert.False(t, m.Online())
}

func TestMonitor_IndependentListeners(t *testing.T) {
	m := NewMonitor(false, logging.Discard())
	var a, b int
	unsubA := m.AddListener(func() { a++ }, nil)
	m.AddListener(func() { panic("broken listener") }, nil)
	m.AddListener(func() { b++ }, nil)

	m.SetOnline(true)
	unsubA()
	m.SetOnline(false)
	m.SetOnline(true)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestMonitor_Watch(t *testing.T) {
	m := NewMonitor(false, logging.Discard())
	var link atomic.Bool
	var ups atomic.Int32
	m.AddListener(func() { ups.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch(ctx, 10*time.Millisecond, link.Load)
	}()

	link.Store(true)
	assert.Eventually(t, m.Online, time.Second, 5*time.Millisecond)
	link.Store(false)
	assert.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int32(1), ups.Load())
}
