package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/fieldsync/logging"
)

func newTestProber(t *testing.T, online bool, handler http.HandlerFunc) (*Prober, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	mon := NewMonitor(online, logging.Discard())
	return NewProber(srv.URL, mon, WithProberLogger(logging.Discard())), &hits
}

func TestProbe_OfflineMakesNoRequest(t *testing.T) {
	p, hits := newTestProber(t, false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	assert.False(t, p.IsDeviceOnline())
	assert.False(t, p.Probe(context.Background(), 0))
	assert.Equal(t, int32(0), hits.Load())
}

func TestProbe_TimeoutAbortsRequest(t *testing.T) {
	aborted := make(chan struct{})
	p, _ := newTestProber(t, true, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		close(aborted)
	})

	start := time.Now()
	ok := p.Probe(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Less(t, elapsed, 500*time.Millisecond)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the request being cancelled")
	}
}

func TestProbe_StatusPolicy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "healthy status", status: 200, body: `{"status":"ok"}`, want: true},
		{name: "healthy flag", status: 200, body: `{"healthy":true}`, want: true},
		{name: "unhealthy flag", status: 200, body: `{"healthy":false}`, want: false},
		{name: "explicit degraded", status: 200, body: `{"status":"maintenance"}`, want: false},
		{name: "unparseable body", status: 200, body: `<html>ok</html>`, want: true},
		{name: "json without status", status: 200, body: `{"version":"1.2"}`, want: true},
		{name: "empty body", status: 204, body: ``, want: true},
		{name: "redirect", status: 302, body: ``, want: true},
		{name: "unauthorized", status: 401, body: `{"error":"token"}`, want: true},
		{name: "not found", status: 404, body: ``, want: true},
		{name: "server error", status: 500, body: `{"status":"ok"}`, want: false},
		{name: "unavailable", status: 503, body: ``, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, hits := newTestProber(t, true, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, DefaultHealthPath, r.URL.Path)
				if tt.status == 302 {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			assert.Equal(t, tt.want, p.Probe(context.Background(), time.Second))
			assert.Equal(t, int32(1), hits.Load(), "redirects must not be followed")
		})
	}
}

func TestProbe_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewProber(url, NewMonitor(true, logging.Discard()), WithProberLogger(logging.Discard()))
	ok, err := p.Check(context.Background(), time.Second)
	assert.False(t, ok)
	require.Error(t, err)
}

func TestProbe_CustomHealthPath(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
	}))
	defer srv.Close()

	p := NewProber(srv.URL+"/", NewMonitor(true, logging.Discard()),
		WithHealthPath("healthz"), WithProberLogger(logging.Discard()))
	assert.True(t, p.Probe(context.Background(), time.Second))
	assert.Equal(t, "/healthz", path.Load())
}

func TestProber_AddNetworkListener(t *testing.T) {
	mon := NewMonitor(false, logging.Discard())
	p := NewProber("http://127.0.0.1:1", mon, WithProberLogger(logging.Discard()))

	var ups, downs atomic.Int32
	unsub := p.AddNetworkListener(func() { ups.Add(1) }, func() { downs.Add(1) })

	mon.SetOnline(true)
	mon.SetOnline(false)
	unsub()
	mon.SetOnline(true)

	assert.Equal(t, int32(1), ups.Load())
	assert.Equal(t, int32(1), downs.Load())
}

type staticSignal bool

func (s staticSignal) Online() bool { return bool(s) }

func TestProber_PlainSignal(t *testing.T) {
	p := NewProber("http://127.0.0.1:1", staticSignal(false))
	assert.False(t, p.IsDeviceOnline())
	assert.Nil(t, p.Monitor())
	p.AddNetworkListener(nil, nil)()
}
