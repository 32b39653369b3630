// Package httpapi is the client for the report server's create-report
// endpoint.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/report"
)

// ReportsPath is the create-report endpoint relative to the base URL.
const ReportsPath = "/reports"

// Limits defines size and compression limits for the client
type Limits struct {
	MaxBodyBytes         int64 // Maximum response body size in bytes
	MaxDecompressedBytes int64 // Maximum decompressed response size
	EnableGzip           bool  // Whether to gzip request bodies and accept gzip responses
	GzipMinBytes         int   // Minimum request size before applying gzip compression
}

// DefaultLimits are used unless WithLimits is given. Signature images make
// report payloads large, hence compression from 1KB.
var DefaultLimits = Limits{
	MaxBodyBytes:         1 << 20,
	MaxDecompressedBytes: 4 << 20,
	EnableGzip:           true,
	GzipMinBytes:         1024,
}

// TokenSource supplies the bearer token of the current session. An empty
// token sends no Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client submits reports to the server.
type Client struct {
	baseURL string
	http    *http.Client
	limits  Limits
	tokens  TokenSource
	logger  *logging.Logger
}

// Option configures a Client using the functional options pattern
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(cl *http.Client) Option {
	return func(c *Client) {
		if cl != nil {
			c.http = cl
		}
	}
}

// WithLimits sets the size and compression limits
func WithLimits(l Limits) Option {
	return func(c *Client) {
		c.limits = l
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		limits:  DefaultLimits,
		logger:  logging.WithComponent(logging.Component("httpapi")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CreateReport posts payload on behalf of ownerID. A 2xx answer is decoded
// and returned as is, including success=false replies. Other statuses and
// transport failures are returned as *errors.SyncError: 4xx as
// REMOTE_REJECTED (not retryable), everything else as a retryable
// NETWORK_FAILURE.
func (c *Client) CreateReport(ctx context.Context, ownerID int64, payload report.Payload) (report.CreateResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return report.CreateResult{}, syncErrors.NewWithComponent(syncErrors.OpSubmit, "transport", fmt.Errorf("failed to marshal report: %w", err))
	}

	var body io.Reader = bytes.NewReader(data)
	contentEncoding := ""
	if c.limits.EnableGzip && len(data) >= c.limits.GzipMinBytes {
		compressed, err := gzipBytes(data)
		if err != nil {
			return report.CreateResult{}, syncErrors.NewWithComponent(syncErrors.OpSubmit, "transport", err)
		}
		body = bytes.NewReader(compressed)
		contentEncoding = "gzip"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ReportsPath, body)
	if err != nil {
		return report.CreateResult{}, syncErrors.NewWithComponent(syncErrors.OpSubmit, "transport", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(ownerID, 10))
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	if c.limits.EnableGzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return report.CreateResult{}, syncErrors.NewWithComponent(syncErrors.OpSubmit, "auth", fmt.Errorf("failed to obtain token: %w", err))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return report.CreateResult{}, syncErrors.NewNetworkError(syncErrors.OpSubmit, fmt.Errorf("network error: %w", err))
	}
	defer resp.Body.Close()

	raw, err := readBody(resp, c.limits)
	if err != nil {
		return report.CreateResult{}, syncErrors.NewNetworkError(syncErrors.OpSubmit, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("create report response",
		slog.Int("status", resp.StatusCode),
		slog.Int("request_bytes", len(data)),
		slog.String("content_encoding", contentEncoding),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return report.CreateResult{}, syncErrors.NewRemoteError(syncErrors.OpSubmit, resp.StatusCode,
			fmt.Errorf("server error (status %d): %s", resp.StatusCode, serverMessage(raw)))
	}

	var result report.CreateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return report.CreateResult{}, syncErrors.NewWithComponent(syncErrors.OpSubmit, "transport", fmt.Errorf("invalid response body: %w", err))
	}
	return result, nil
}

// serverMessage extracts "message" or "error" from a JSON error body and
// falls back to the trimmed raw text.
func serverMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return "empty response"
	}
	return msg
}
