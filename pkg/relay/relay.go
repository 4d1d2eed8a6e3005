// Package relay dispatches translated requests upstream and hands the
// response back in a shape the HTTP layer can write directly: a parsed JSON
// document for buffered responses, or a live body for event streams.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/telemetry/metrics"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// Result is a relayed upstream response. Exactly one of Body (streaming) or
// JSON/Raw (buffered) is populated.
type Result struct {
	Status    int
	Header    http.Header
	Streaming bool

	// Body is the live upstream stream. The caller owns it and must Close;
	// Close also releases the request's context resources.
	Body io.ReadCloser

	// JSON is the decoded buffered response; Raw is the undecoded bytes when
	// the body is not valid JSON.
	JSON any
	Raw  []byte
}

// Relay performs upstream dispatch.
type Relay struct {
	client  *upstream.Client
	metrics *metrics.Collector
	logger  *slog.Logger

	// Timeout bounds buffered requests. Streaming requests are exempt; their
	// lifetime is governed by the consumer draining or closing the body.
	Timeout time.Duration
}

// NewRelay creates a relay. collector may be nil.
func NewRelay(client *upstream.Client, collector *metrics.Collector, timeout time.Duration) *Relay {
	return &Relay{
		client:  client,
		metrics: collector,
		logger:  slog.Default().With("component", "relay"),
		Timeout: timeout,
	}
}

// streamBody ties the request's cancel function to the body so that closing
// the stream releases the connection and the context together.
type streamBody struct {
	io.ReadCloser
	cancel  context.CancelFunc
	metrics *metrics.Collector
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	b.metrics.RecordStreamCompleted()
	return err
}

// Do sends the translated request and classifies the response. Upstream
// errors and non-2xx buffered responses come back as *upstream.Error with
// the upstream's own error detail when it provided one.
func (r *Relay) Do(ctx context.Context, req *translate.Request, connection int, operation string) (*Result, error) {
	// Cancellation flows both ways: the caller's context aborts the upstream
	// request when the consumer goes away, and closing Result.Body releases
	// the request from the consumer side once the stream is drained.
	ctx, cancel := context.WithCancel(ctx)

	start := time.Now()
	resp, err := r.client.Do(ctx, req.Method, req.URL, req.Body, req.Header)
	r.metrics.RecordUpstreamRequest(connection, operation, err, time.Since(start))
	if err != nil {
		cancel()
		return nil, &upstream.Error{URL: req.URL, Message: upstream.FallbackMessage, Cause: err}
	}

	if isEventStream(resp.Header.Get("Content-Type")) {
		r.metrics.RecordStreamStarted()
		return &Result{
			Status:    resp.StatusCode,
			Header:    resp.Header,
			Streaming: true,
			Body:      &streamBody{ReadCloser: resp.Body, cancel: cancel, metrics: r.metrics},
		}, nil
	}

	defer cancel()
	defer resp.Body.Close()

	var raw []byte
	if r.Timeout > 0 {
		deadline := time.AfterFunc(r.Timeout, cancel)
		raw, err = io.ReadAll(resp.Body)
		deadline.Stop()
	} else {
		raw, err = io.ReadAll(resp.Body)
	}
	if err != nil {
		return nil, &upstream.Error{URL: req.URL, Message: upstream.FallbackMessage, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn("upstream returned error",
			"url", req.URL,
			"status", resp.StatusCode,
		)
		return nil, &upstream.Error{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Message:    upstream.ExtractErrorDetail(raw, upstream.FallbackMessage),
		}
	}

	result := &Result{Status: resp.StatusCode, Header: resp.Header}
	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		result.JSON = decoded
	} else {
		// Not JSON; pass the bytes through unchanged.
		result.Raw = raw
	}
	return result, nil
}

// isEventStream reports whether the content type marks a server-sent event
// stream.
func isEventStream(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/event-stream")
}
