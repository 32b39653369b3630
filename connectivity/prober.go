package connectivity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
)

const (
	// DefaultProbeTimeout bounds a probe when no timeout is given.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultHealthPath is appended to the base URL.
	DefaultHealthPath = "/api/health"

	maxHealthBodyBytes = 64 << 10
)

// Signal is the platform's network-presence flag. *Monitor implements it.
type Signal interface {
	Online() bool
}

// Prober checks that the server is reachable.
type Prober struct {
	signal     Signal
	monitor    *Monitor
	httpClient *http.Client
	healthURL  string
	timeout    time.Duration
	logger     *logging.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithHTTPClient sets the client used for probes. Its redirect policy is
// replaced so that 3xx responses count as reachable.
func WithHTTPClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		if c != nil {
			cp := *c
			p.httpClient = &cp
		}
	}
}

// WithHealthPath overrides DefaultHealthPath.
func WithHealthPath(path string) ProberOption {
	return func(p *Prober) {
		if path != "" {
			p.healthURL = path
		}
	}
}

// WithDefaultTimeout overrides DefaultProbeTimeout.
func WithDefaultTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(l *logging.Logger) ProberOption {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProber returns a Prober for the server at baseURL. signal is usually
// a *Monitor; AddNetworkListener is only available when it is.
func NewProber(baseURL string, signal Signal, opts ...ProberOption) *Prober {
	p := &Prober{
		signal:     signal,
		httpClient: &http.Client{},
		healthURL:  DefaultHealthPath,
		timeout:    DefaultProbeTimeout,
		logger:     logging.WithComponent(logging.Component("connectivity")),
	}
	if m, ok := signal.(*Monitor); ok {
		p.monitor = m
	}
	for _, opt := range opts {
		opt(p)
	}
	p.healthURL = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(p.healthURL, "/")
	p.httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return p
}

// IsDeviceOnline reads the platform flag without any I/O.
func (p *Prober) IsDeviceOnline() bool {
	return p.signal != nil && p.signal.Online()
}

// Probe reports whether the server is reachable within timeout (the
// default when timeout <= 0). It returns false without a request when the
// device is offline. The request is cancelled when the timeout expires.
func (p *Prober) Probe(ctx context.Context, timeout time.Duration) bool {
	ok, err := p.Check(ctx, timeout)
	if err != nil {
		p.logger.Debug("server unreachable", slog.Any("error", err))
	}
	return ok
}

// Check is Probe with the reason for a negative answer.
func (p *Prober) Check(ctx context.Context, timeout time.Duration) (bool, error) {
	if !p.IsDeviceOnline() {
		return false, syncErrors.NewNetworkError(syncErrors.OpProbe, errors.New("device is offline"))
	}
	if timeout <= 0 {
		timeout = p.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false, syncErrors.NewValidationError(syncErrors.OpProbe, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, syncErrors.NewNetworkError(syncErrors.OpProbe, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return false, syncErrors.NewRemoteError(syncErrors.OpProbe, resp.StatusCode, fmt.Errorf("health endpoint returned %s", resp.Status))
	case resp.StatusCode >= 400:
		// the server answered; only this request was refused
		return true, nil
	case resp.StatusCode < 200:
		return false, syncErrors.NewNetworkError(syncErrors.OpProbe, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return false, syncErrors.NewNetworkError(syncErrors.OpProbe, ctx.Err())
		}
		// headers arrived, so the path is up
		return true, nil
	}
	if healthy, known := parseHealth(body); known && !healthy {
		return false, syncErrors.NewWithComponent(syncErrors.OpProbe, "connectivity", fmt.Errorf("server reports unhealthy: %s", truncate(body, 200)))
	}
	return true, nil
}

// parseHealth extracts an explicit health verdict from a JSON body. known
// is false when the body is not JSON or carries no status.
func parseHealth(body []byte) (healthy, known bool) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, false
	}
	if v, ok := doc["healthy"].(bool); ok {
		return v, true
	}
	status, ok := doc["status"].(string)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "healthy", "up", "pass":
		return true, true
	default:
		return false, true
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// AddNetworkListener subscribes to online/offline transitions of the
// underlying Monitor. It is a no-op when the Prober was built on a plain
// Signal.
func (p *Prober) AddNetworkListener(onOnline, onOffline func()) (unsubscribe func()) {
	if p.monitor == nil {
		return func() {}
	}
	return p.monitor.AddListener(onOnline, onOffline)
}

// Monitor returns the Monitor the Prober was built on, or nil.
func (p *Prober) Monitor() *Monitor { return p.monitor }
