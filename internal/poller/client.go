package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits: the dashboard polls a handful of feeds on one
// backend host, so the per-host limits matter more than the totals
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of one HTTP fetch made by [Client].
//
// Response captures everything a subscription needs from a fetch: the
// body (limited to 1MB), status code, latency, and any transport error.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code (e.g. 200, 404, 500).
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though the status code may
	// still indicate a failure).
	Error error
}

// Client is an HTTP client wrapper tuned for feed polling.
//
// Timeouts are applied per request via context rather than as a global
// client timeout, so feeds with different timeout configurations can
// share one connection pool.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a polling [Client] with pooled connections.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout; per-request timeouts come from context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs a GET request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately, which keeps completion handling in the
// controller uniform.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close releases idle connections in the client's pool.
//
// Safe to call multiple times; the client remains usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
