// Package upstream provides the shared HTTP client used for all outbound
// calls to configured connections: model listing, chat completion dispatch,
// knowledge-base listing, and permission forwarding.
//
// The client owns a pooled transport. Request lifetimes are governed by the
// caller's context, never by a client-wide timeout, so streamed responses
// stay open for as long as the downstream consumer keeps reading.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client issues outbound HTTP requests with connection pooling.
type Client struct {
	http *http.Client
}

// Config tunes the client's transport.
type Config struct {
	// MaxIdleConns caps idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections per upstream host.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration
}

// NewClient creates a client with a pooled transport.
func NewClient(cfg Config) *Client {
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		http: &http.Client{Transport: transport},
	}
}

// Do issues a request. The response body is returned unread; callers own
// closing it. Cancellation of ctx aborts the request and, for responses
// already in flight, the body read.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// GetJSON issues a GET and decodes a JSON object response. Non-2xx statuses
// and transport failures are returned as *Error.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header) (map[string]any, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil, header)
	if err != nil {
		return nil, &Error{URL: url, Message: FallbackMessage, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Message: FallbackMessage, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    ExtractErrorDetail(raw, fmt.Sprintf("HTTP Error: %d", resp.StatusCode)),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Message: "invalid JSON response", Cause: err}
	}
	return decoded, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}
