package catalog

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/internal/gatewaytest"
	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

func testSettings(s Settings) func() Settings {
	return func() Settings { return s }
}

func newTestAggregator(t *testing.T, urls, keys []string, configs map[string]registry.ConnectionConfig, s Settings) *Aggregator {
	t.Helper()
	reg := registry.New(urls, keys, configs)
	return NewAggregator(reg, upstream.NewClient(upstream.Config{}), testSettings(s), nil)
}

func admin() *access.Caller {
	return &access.Caller{ID: "admin", Role: access.RoleAdmin}
}

func TestListAllMergesInIndexOrder(t *testing.T) {
	a := gatewaytest.NewMockUpstream()
	defer a.Close()
	b := gatewaytest.NewMockUpstream()
	defer b.Close()

	// The slower connection comes first; index order must still win.
	a.SetResponse("/models", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Delay:      50 * time.Millisecond,
		Body:       map[string]any{"data": []map[string]any{{"id": "alpha"}}},
	})
	b.SetModels("beta", "gamma")

	agg := newTestAggregator(t, []string{a.URL(), b.URL()}, nil, nil, Settings{Enabled: true})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	wantIDs := []string{"alpha", "beta", "gamma"}
	if len(cat.Entries) != len(wantIDs) {
		t.Fatalf("entry count = %d, want %d", len(cat.Entries), len(wantIDs))
	}
	for i, want := range wantIDs {
		if cat.Entries[i].ID != want {
			t.Errorf("Entries[%d].ID = %q, want %q", i, cat.Entries[i].ID, want)
		}
	}
	if cat.Entries[0].OwnerIndex != 0 || cat.Entries[1].OwnerIndex != 1 {
		t.Error("owner indices not stamped in connection order")
	}
}

func TestListAllSkipsFailedConnection(t *testing.T) {
	good := gatewaytest.NewMockUpstream()
	defer good.Close()
	good.SetModels("survivor")

	bad := gatewaytest.NewMockUpstream()
	bad.SetResponse("/models", gatewaytest.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       map[string]any{"error": "boom"},
	})
	defer bad.Close()

	agg := newTestAggregator(t, []string{bad.URL(), good.URL()}, nil, nil, Settings{Enabled: true})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 1 || cat.Entries[0].ID != "survivor" {
		t.Fatalf("entries = %v, want just survivor", cat.Entries)
	}
}

func TestListAllTimedOutConnectionPreservesOthers(t *testing.T) {
	slow := gatewaytest.NewMockUpstream()
	defer slow.Close()
	slow.SetResponse("/models", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Delay:      300 * time.Millisecond,
		Body:       map[string]any{"data": []map[string]any{{"id": "never"}}},
	})

	fast := gatewaytest.NewMockUpstream()
	defer fast.Close()
	fast.SetModels("quick")

	agg := newTestAggregator(t, []string{slow.URL(), fast.URL()}, nil, nil, Settings{
		Enabled:     true,
		ListTimeout: 50 * time.Millisecond,
	})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 1 || cat.Entries[0].ID != "quick" {
		t.Fatalf("entries = %v, want just quick", cat.Entries)
	}
}

func TestListAllAppliesPrefixAndAnnotations(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("gpt-x")

	configs := map[string]registry.ConnectionConfig{
		"0": {PrefixID: "acme", Tags: []string{"internal"}},
	}
	agg := newTestAggregator(t, []string{up.URL()}, nil, configs, Settings{Enabled: true})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(cat.Entries))
	}

	e := cat.Entries[0]
	if e.ID != "acme.gpt-x" {
		t.Errorf("ID = %q, want acme.gpt-x", e.ID)
	}
	if e.Raw["owned_by"] != "openai" {
		t.Errorf("owned_by = %v, want openai", e.Raw["owned_by"])
	}
	if e.Raw["urlIdx"] != 0 {
		t.Errorf("urlIdx = %v, want 0", e.Raw["urlIdx"])
	}
	if _, ok := e.Raw["openai"]; !ok {
		t.Error("original record missing under openai key")
	}
	tags, ok := e.Raw["tags"].([]string)
	if !ok || len(tags) != 1 || tags[0] != "internal" {
		t.Errorf("tags = %v, want [internal]", e.Raw["tags"])
	}

	// The index resolves the prefixed id.
	if _, ok := agg.Lookup("acme.gpt-x"); !ok {
		t.Error("Lookup(acme.gpt-x) missed")
	}
	if _, ok := agg.Lookup("gpt-x"); ok {
		t.Error("Lookup(gpt-x) resolved an unprefixed id")
	}
}

func TestListAllDisabledConnectionSkipped(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("hidden")

	off := false
	configs := map[string]registry.ConnectionConfig{"0": {Enabled: &off}}
	agg := newTestAggregator(t, []string{up.URL()}, nil, configs, Settings{Enabled: true})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 0 {
		t.Fatalf("entries = %v, want none", cat.Entries)
	}
	if up.RequestCount() != 0 {
		t.Errorf("disabled connection was contacted %d times", up.RequestCount())
	}
}

func TestListAllExplicitModelIDsSynthesizedLocally(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()

	configs := map[string]registry.ConnectionConfig{
		"0": {ModelIDs: []string{"pinned-a", "pinned-b"}},
	}
	agg := newTestAggregator(t, []string{up.URL()}, nil, configs, Settings{Enabled: true})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(cat.Entries))
	}
	if up.RequestCount() != 0 {
		t.Errorf("allow-listed connection was contacted %d times", up.RequestCount())
	}
}

func TestListAllDisabledFeatureReturnsEmpty(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("anything")

	agg := newTestAggregator(t, []string{up.URL()}, nil, nil, Settings{Enabled: false})

	cat, err := agg.ListAll(context.Background(), admin())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(cat.Entries) != 0 {
		t.Fatalf("entries = %v, want none", cat.Entries)
	}
	if _, ok := agg.Lookup("anything"); ok {
		t.Error("index kept entries while disabled")
	}
}

func TestListAllCachesWithinWindow(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("cached")

	agg := newTestAggregator(t, []string{up.URL()}, nil, nil, Settings{Enabled: true})

	for i := 0; i < 3; i++ {
		if _, err := agg.ListAll(context.Background(), admin()); err != nil {
			t.Fatalf("ListAll() #%d error = %v", i, err)
		}
	}
	if got := up.RequestCount(); got != 1 {
		t.Errorf("upstream contacted %d times within the cache window, want 1", got)
	}
}

func TestListAllCoalescesConcurrentCallers(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/models", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Delay:      150 * time.Millisecond,
		Body:       map[string]any{"data": []map[string]any{{"id": "shared"}}},
	})

	agg := newTestAggregator(t, []string{up.URL()}, nil, nil, Settings{Enabled: true})

	// All callers arrive while the first refresh is still in flight; they
	// must share that refresh rather than fan out upstream.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cat, err := agg.ListAll(context.Background(), admin())
			if err != nil {
				t.Errorf("ListAll() error = %v", err)
				return
			}
			if len(cat.Entries) != 1 || cat.Entries[0].ID != "shared" {
				t.Errorf("entries = %v, want just shared", cat.Entries)
			}
		}()
	}
	wg.Wait()

	if got := up.RequestCount(); got != 1 {
		t.Errorf("upstream contacted %d times by concurrent callers, want 1", got)
	}
}

func TestListAllForwardsIdentityHeaders(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("m")

	agg := newTestAggregator(t, []string{up.URL()}, []string{"secret"}, nil, Settings{
		Enabled:         true,
		ForwardIdentity: true,
	})

	caller := &access.Caller{ID: "u9", Name: "Sam", Email: "sam@example.com", Role: "user"}
	if _, err := agg.ListAll(context.Background(), caller); err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	headers := up.LastHeaders()
	if got := headers.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := headers.Get("X-GiSaWeb-User-Id"); got != "u9" {
		t.Errorf("X-GiSaWeb-User-Id = %q", got)
	}
}

func TestMergeDenylistFiltersCanonicalHostOnly(t *testing.T) {
	records := []map[string]any{
		{"id": "gpt-4"},
		{"id": "dall-e-3"},
		{"id": "text-embedding-3-small"},
		{"id": "whisper-1"},
	}

	agg := newTestAggregator(t, nil, nil, nil, Settings{Enabled: true})

	canonical := []registry.Connection{{Index: 0, BaseURL: "https://api.openai.com/v1"}}
	cat := agg.merge(canonical, [][]map[string]any{records})
	if len(cat.Entries) != 1 || cat.Entries[0].ID != "gpt-4" {
		t.Errorf("canonical entries = %v, want just gpt-4", cat.Entries)
	}

	other := []registry.Connection{{Index: 0, BaseURL: "https://other.example/v1"}}
	cat = agg.merge(other, [][]map[string]any{records})
	if len(cat.Entries) != 4 {
		t.Errorf("non-canonical entry count = %d, want 4 (no denylist)", len(cat.Entries))
	}
}

func TestListConnection(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetModels("direct")

	agg := newTestAggregator(t, []string{up.URL()}, []string{"k"}, nil, Settings{Enabled: true})

	response, err := agg.ListConnection(context.Background(), 0, admin())
	if err != nil {
		t.Fatalf("ListConnection() error = %v", err)
	}
	data, ok := response["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v, want one record", response["data"])
	}
}

func TestListConnectionOutOfRange(t *testing.T) {
	agg := newTestAggregator(t, []string{"https://a.example"}, nil, nil, Settings{Enabled: true})

	_, err := agg.ListConnection(context.Background(), 7, admin())
	var upstreamErr *upstream.Error
	if !errors.As(err, &upstreamErr) || upstreamErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want 404 upstream error", err)
	}
}

func TestListConnectionAzureAnswersLocally(t *testing.T) {
	configs := map[string]registry.ConnectionConfig{
		"0": {Azure: true, ModelIDs: []string{"deploy-a", "deploy-b"}},
	}
	agg := newTestAggregator(t, []string{"https://azure.example"}, nil, configs, Settings{Enabled: true})

	response, err := agg.ListConnection(context.Background(), 0, admin())
	if err != nil {
		t.Fatalf("ListConnection() error = %v", err)
	}
	data, ok := response["data"].([]any)
	if !ok || len(data) != 2 {
		t.Fatalf("data = %v, want two local entries", response["data"])
	}
}

func TestListConnectionSurfacesUpstreamError(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/models", gatewaytest.MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       map[string]any{"error": map[string]any{"message": "bad key"}},
	})

	agg := newTestAggregator(t, []string{up.URL()}, nil, nil, Settings{Enabled: true})

	_, err := agg.ListConnection(context.Background(), 0, admin())
	var upstreamErr *upstream.Error
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("error = %v, want upstream error", err)
	}
	if upstreamErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", upstreamErr.StatusCode)
	}
	if upstreamErr.Message != "bad key" {
		t.Errorf("message = %q, want bad key", upstreamErr.Message)
	}
}
