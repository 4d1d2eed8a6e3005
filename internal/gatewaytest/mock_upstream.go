// Package gatewaytest provides a fake upstream connection for tests. It
// simulates OpenAI-compatible backends including model listings, chat
// completions, event streams, errors, and slow responses.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockUpstream is a fake OpenAI-compatible backend.
type MockUpstream struct {
	server       *httptest.Server
	responses    map[string]MockResponse
	requestCount int
	lastHeaders  http.Header
	lastBody     []byte
	mu           sync.Mutex
}

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode   int
	Body         any
	Delay        time.Duration
	Headers      map[string]string
	StreamChunks []string

	// ChunkDelay is slept before each stream chunk after the first, to
	// simulate a slow producer.
	ChunkDelay time.Duration
}

// NewMockUpstream creates a started fake backend.
func NewMockUpstream() *MockUpstream {
	ms := &MockUpstream{
		responses: make(map[string]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the fake backend's base url.
func (ms *MockUpstream) URL() string {
	return ms.server.URL
}

// Close shuts the fake backend down.
func (ms *MockUpstream) Close() {
	ms.server.Close()
}

// SetResponse registers the response for a path.
func (ms *MockUpstream) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// SetModels registers a standard model list response for /models.
func (ms *MockUpstream) SetModels(ids ...string) {
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any{"id": id, "object": "model"})
	}
	ms.SetResponse("/models", MockResponse{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"object": "list", "data": data},
	})
}

// RequestCount returns the number of requests received.
func (ms *MockUpstream) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.requestCount
}

// LastHeaders returns the headers of the most recent request.
func (ms *MockUpstream) LastHeaders() http.Header {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastHeaders
}

// LastBody returns the body of the most recent request.
func (ms *MockUpstream) LastBody() []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastBody
}

func (ms *MockUpstream) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requestCount++
	ms.lastHeaders = r.Header.Clone()
	ms.lastBody = body
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 {
		ms.handleStream(w, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

// handleStream writes the chunks as a server-sent event stream.
func (ms *MockUpstream) handleStream(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for i, chunk := range response.StreamChunks {
		if i > 0 && response.ChunkDelay > 0 {
			time.Sleep(response.ChunkDelay)
		}
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}
