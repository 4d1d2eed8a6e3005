package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/telemetry/metrics"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// cacheTTL is the catalog cache window. Callers arriving within the window
// share a single aggregation cycle.
const cacheTTL = time.Second

// canonicalDenylist drops known non-chat model families from the canonical
// default connection. This is backend-specific policy for api.openai.com
// only; entries from other hosts are never filtered by it.
var canonicalDenylist = []string{
	"babbage",
	"dall-e",
	"davinci",
	"embedding",
	"tts",
	"whisper",
}

// Settings are the aggregation knobs read at the start of every cycle, so
// administrative config updates take effect without restarting.
type Settings struct {
	// Enabled gates the whole feature; disabled returns an empty catalog.
	Enabled bool

	// ForwardIdentity forwards caller identity headers on list calls.
	ForwardIdentity bool

	// ListTimeout bounds each connection's list call.
	ListTimeout time.Duration
}

// Aggregator fans out model list calls and maintains the merged catalog and
// its process-wide id index.
type Aggregator struct {
	registry *registry.Registry
	client   *upstream.Client
	settings func() Settings
	metrics  *metrics.Collector
	logger   *slog.Logger

	mu       sync.Mutex
	cached   *Catalog
	expires  time.Time
	inflight *inflightCall

	// index is the id -> Entry map, fully replaced on every cycle.
	index atomic.Pointer[map[string]*Entry]
}

// inflightCall is a shared aggregation computation. Waiters block on done
// and then read catalog.
type inflightCall struct {
	done    chan struct{}
	catalog *Catalog
}

// NewAggregator creates an aggregator. settings is called at the start of
// each cycle; collector may be nil.
func NewAggregator(reg *registry.Registry, client *upstream.Client, settings func() Settings, collector *metrics.Collector) *Aggregator {
	a := &Aggregator{
		registry: reg,
		client:   client,
		settings: settings,
		metrics:  collector,
		logger:   slog.Default().With("component", "catalog"),
	}
	empty := map[string]*Entry{}
	a.index.Store(&empty)
	return a
}

// Lookup resolves a logical model id against the most recent catalog index.
func (a *Aggregator) Lookup(id string) (*Entry, bool) {
	idx := *a.index.Load()
	e, ok := idx[id]
	return e, ok
}

// ListAll returns the merged catalog, serving from cache within the TTL
// window and coalescing concurrent refreshes into one fan-out.
func (a *Aggregator) ListAll(ctx context.Context, caller *access.Caller) (*Catalog, error) {
	s := a.settings()
	if !s.Enabled {
		empty := map[string]*Entry{}
		a.index.Store(&empty)
		return &Catalog{}, nil
	}

	a.mu.Lock()
	if a.cached != nil && time.Now().Before(a.expires) {
		cat := a.cached
		a.mu.Unlock()
		return cat, nil
	}
	if a.inflight != nil {
		call := a.inflight
		a.mu.Unlock()
		select {
		case <-call.done:
			return call.catalog, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	a.inflight = call
	a.mu.Unlock()

	// The fan-out is detached from the first caller's cancellation so that
	// coalesced waiters still get a result if that caller disconnects.
	cat := a.aggregate(context.WithoutCancel(ctx), caller, s)

	a.mu.Lock()
	a.cached = cat
	a.expires = time.Now().Add(cacheTTL)
	a.inflight = nil
	a.mu.Unlock()

	call.catalog = cat
	close(call.done)
	return cat, nil
}

// aggregate runs one full fan-out/merge cycle and refreshes the id index.
func (a *Aggregator) aggregate(ctx context.Context, caller *access.Caller, s Settings) *Catalog {
	conns := a.registry.Connections()
	results := make([][]map[string]any, len(conns))

	var wg sync.WaitGroup
	for i, conn := range conns {
		cfg := conn.Config
		if !cfg.IsEnabled() {
			continue
		}

		if len(cfg.ModelIDs) > 0 {
			// Explicit allow-list: synthesize locally, no network call.
			results[i] = synthesizeRecords(cfg.ModelIDs)
			continue
		}

		wg.Add(1)
		go func(i int, conn registry.Connection) {
			defer wg.Done()
			results[i] = a.fetchModels(ctx, conn, caller, s)
		}(i, conn)
	}
	wg.Wait()

	cat := a.merge(conns, results)

	index := make(map[string]*Entry, len(cat.Entries))
	for _, e := range cat.Entries {
		index[e.ID] = e
	}
	a.index.Store(&index)
	a.metrics.RecordCatalogRefresh(len(cat.Entries))

	return cat
}

// fetchModels lists one connection's models. Any failure degrades this
// connection's contribution to nil; it never aborts the aggregation.
func (a *Aggregator) fetchModels(ctx context.Context, conn registry.Connection, caller *access.Caller, s Settings) []map[string]any {
	timeout := s.ListTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	if conn.APIKey != "" {
		header.Set("Authorization", "Bearer "+conn.APIKey)
	}
	if s.ForwardIdentity {
		for k, v := range translate.IdentityHeaders(caller) {
			header[k] = v
		}
	}

	start := time.Now()
	records, err := a.listModelsRequest(ctx, conn.BaseURL+"/models", header)
	a.metrics.RecordUpstreamRequest(conn.Index, "list_models", err, time.Since(start))
	if err != nil {
		a.logger.Warn("model list failed, skipping connection",
			"connection", conn.Index,
			"error", err,
		)
		return nil
	}
	return records
}

// listModelsRequest performs the list call and accepts both the OpenAI list
// envelope and a bare JSON array.
func (a *Aggregator) listModelsRequest(ctx context.Context, url string, header http.Header) ([]map[string]any, error) {
	resp, err := a.client.Do(ctx, http.MethodGet, url, nil, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &upstream.Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    upstream.ExtractErrorDetail(raw, fmt.Sprintf("HTTP Error: %d", resp.StatusCode)),
		}
	}

	return decodeModelRecords(raw)
}

// decodeModelRecords extracts model records from either response shape.
func decodeModelRecords(raw []byte) ([]map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("invalid model list response: %w", err)
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["data"].([]any)
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// synthesizeRecords builds local records for an explicit model allow-list.
func synthesizeRecords(ids []string) []map[string]any {
	records := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		records = append(records, map[string]any{
			"id":   id,
			"name": id,
		})
	}
	return records
}

// merge combines per-connection results in index order, annotating every
// record with its owner connection and connection config.
func (a *Aggregator) merge(conns []registry.Connection, results [][]map[string]any) *Catalog {
	var entries []*Entry

	for i, records := range results {
		if records == nil {
			continue
		}
		conn := conns[i]
		cfg := conn.Config
		canonical := strings.Contains(conn.BaseURL, translate.CanonicalHost)

		for _, record := range records {
			id, _ := record["id"].(string)
			name, _ := record["name"].(string)
			if id == "" && name == "" {
				continue
			}
			if id == "" {
				id = name
			}
			if canonical && matchesDenylist(id) {
				continue
			}

			if cfg.PrefixID != "" {
				id = cfg.PrefixID + "." + id
			}
			if name == "" {
				name = id
			}

			raw := make(map[string]any, len(record)+6)
			for k, v := range record {
				raw[k] = v
			}
			raw["id"] = id
			raw["name"] = name
			raw["owned_by"] = "openai"
			raw["openai"] = record
			raw["connection_type"] = cfg.TypeOrDefault()
			raw["urlIdx"] = conn.Index
			if len(cfg.Tags) > 0 {
				raw["tags"] = cfg.Tags
			}

			entries = append(entries, &Entry{
				ID:             id,
				Name:           name,
				OwnerIndex:     conn.Index,
				ConnectionType: cfg.TypeOrDefault(),
				Raw:            raw,
			})
		}
	}

	return &Catalog{Entries: entries}
}

// matchesDenylist reports whether a canonical-connection model id belongs to
// a dropped family.
func matchesDenylist(id string) bool {
	for _, name := range canonicalDenylist {
		if strings.Contains(id, name) {
			return true
		}
	}
	return false
}
