package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/ISA-Forensic/GiSaWeb/internal/gatewaytest"
	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/store"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

func TestExternalIDRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		foreignID string
	}{
		{name: "plain id", index: 0, foreignID: "kb-1"},
		{name: "id with underscores", index: 2, foreignID: "legal_docs_v2"},
		{name: "uuid id", index: 11, foreignID: "0198f3a2-6e5a-7c3b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ExternalID(tt.index, tt.foreignID)
			index, foreignID, err := ParseExternalID(id)
			if err != nil {
				t.Fatalf("ParseExternalID(%q) error = %v", id, err)
			}
			if index != tt.index || foreignID != tt.foreignID {
				t.Errorf("round trip = (%d, %q), want (%d, %q)", index, foreignID, tt.index, tt.foreignID)
			}
		})
	}
}

func TestParseExternalIDRejectsMalformed(t *testing.T) {
	tests := []string{
		"kb-1",
		"external_",
		"external_5",
		"external_x_kb-1",
		"",
	}

	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			_, _, err := ParseExternalID(id)
			var invalid *InvalidResourceIDError
			if !errors.As(err, &invalid) {
				t.Fatalf("ParseExternalID(%q) error = %v, want InvalidResourceIDError", id, err)
			}
			if invalid.ID != id {
				t.Errorf("ID = %q, want %q", invalid.ID, id)
			}
		})
	}
}

func newTestService(t *testing.T, urls, keys []string, local store.KnowledgeStore) *Service {
	t.Helper()
	if local == nil {
		local = store.NewMemoryStore()
	}
	reg := registry.New(urls, keys, nil)
	client := upstream.NewClient(upstream.Config{})
	return NewService(reg, client, local, &access.ACLChecker{}, func() Settings {
		return Settings{}
	})
}

func TestListMergesLocalAndRemote(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/knowledge-bases", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{"data": []map[string]any{
			{"id": "kb-1", "name": "Remote KB"},
		}},
	})

	local := store.NewMemoryStore()
	if err := local.UpsertKnowledge(&store.KnowledgeRecord{
		ID:     "local-1",
		Name:   "Local KB",
		UserID: "alice",
	}); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, []string{up.URL()}, []string{"key"}, local)
	caller := &access.Caller{ID: "alice", Role: access.RoleUser}
	bases, err := svc.List(context.Background(), caller)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(bases) != 2 {
		t.Fatalf("len(bases) = %d, want 2: %v", len(bases), bases)
	}
	if bases[0]["id"] != "local-1" {
		t.Errorf("local id = %v, want local-1", bases[0]["id"])
	}
	if bases[1]["id"] != "external_0_kb-1" {
		t.Errorf("remote id = %v, want external_0_kb-1", bases[1]["id"])
	}
	if bases[1]["connection"] != 0 {
		t.Errorf("connection = %v, want 0", bases[1]["connection"])
	}
}

func TestListHidesForeignLocalRecords(t *testing.T) {
	local := store.NewMemoryStore()
	records := []*store.KnowledgeRecord{
		{ID: "mine", UserID: "alice"},
		{ID: "shared", UserID: "bob", AccessControl: &access.Control{
			Write: access.Grant{UserIDs: []string{"alice"}},
		}},
		{ID: "theirs", UserID: "bob", AccessControl: &access.Control{}},
	}
	for _, rec := range records {
		if err := local.UpsertKnowledge(rec); err != nil {
			t.Fatal(err)
		}
	}

	svc := newTestService(t, nil, nil, local)

	caller := &access.Caller{ID: "alice", Role: access.RoleUser}
	bases, err := svc.List(context.Background(), caller)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bases) != 2 || bases[0]["id"] != "mine" || bases[1]["id"] != "shared" {
		t.Errorf("visible = %v, want [mine shared]", bases)
	}

	adminBases, err := svc.List(context.Background(), &access.Caller{ID: "root", Role: access.RoleAdmin})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(adminBases) != 3 {
		t.Errorf("admin sees %d records, want 3", len(adminBases))
	}
}

func TestListFiltersExternalByAccess(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/knowledge-bases", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{"data": []map[string]any{
			{"id": "kb-open", "name": "Open"},
			{"id": "kb-private", "user_id": "someone-else", "access_control": map[string]any{}},
			{"id": "kb-mine", "user_id": "alice", "access_control": map[string]any{}},
			{"id": "kb-granted", "user_id": "someone-else", "access_control": map[string]any{
				"read": map[string]any{"user_ids": []string{"alice"}},
			}},
		}},
	})

	svc := newTestService(t, []string{up.URL()}, []string{"key"}, nil)

	caller := &access.Caller{ID: "alice", Role: access.RoleUser}
	bases, err := svc.List(context.Background(), caller)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	visible := map[string]bool{}
	for _, b := range bases {
		id, _ := b["id"].(string)
		visible[id] = true
	}
	// No access control means public read; an explicit empty one restricts to
	// the owner.
	for _, want := range []string{"external_0_kb-open", "external_0_kb-mine", "external_0_kb-granted"} {
		if !visible[want] {
			t.Errorf("visible = %v, missing %s", visible, want)
		}
	}
	if visible["external_0_kb-private"] {
		t.Error("restricted record leaked to a non-owner")
	}

	adminBases, err := svc.List(context.Background(), &access.Caller{ID: "root", Role: access.RoleAdmin})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(adminBases) != 4 {
		t.Errorf("admin sees %d records, want 4", len(adminBases))
	}
}

func TestListAcceptsBareArrayAndIDFallbacks(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	// Some backends answer with a bare array, and name their id field
	// differently per record.
	up.SetResponse("/knowledge-bases", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body: []map[string]any{
			{"id": "kb-plain"},
			{"knowledge_base_id": "kb-alt"},
			{"name": "kb-named"},
			{"description": "no usable id"},
		},
	})

	svc := newTestService(t, []string{up.URL()}, []string{"key"}, nil)
	bases, err := svc.List(context.Background(), &access.Caller{ID: "root", Role: access.RoleAdmin})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	wantIDs := []string{"external_0_kb-plain", "external_0_kb-alt", "external_0_kb-named"}
	if len(bases) != len(wantIDs) {
		t.Fatalf("bases = %v, want %d records", bases, len(wantIDs))
	}
	for i, want := range wantIDs {
		if bases[i]["id"] != want {
			t.Errorf("bases[%d] id = %v, want %s", i, bases[i]["id"], want)
		}
	}
}

func TestListSkipsFailedConnections(t *testing.T) {
	healthy := gatewaytest.NewMockUpstream()
	defer healthy.Close()
	healthy.SetResponse("/knowledge-bases", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{"data": []map[string]any{
			{"id": "kb-ok"},
		}},
	})

	broken := gatewaytest.NewMockUpstream()
	broken.SetResponse("/knowledge-bases", gatewaytest.MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       map[string]any{"error": "boom"},
	})
	defer broken.Close()

	svc := newTestService(t,
		[]string{broken.URL(), healthy.URL()},
		[]string{"k0", "k1"},
		nil,
	)
	bases, err := svc.List(context.Background(), &access.Caller{ID: "root", Role: access.RoleAdmin})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bases) != 1 || bases[0]["id"] != "external_1_kb-ok" {
		t.Errorf("bases = %v, want only external_1_kb-ok", bases)
	}
}

func TestListSkipsBlankConnections(t *testing.T) {
	// An empty url slot and an empty key slot both disqualify a connection
	// without producing an error.
	svc := newTestService(t, []string{"", "http://unused.invalid"}, []string{"k0", ""}, nil)
	bases, err := svc.List(context.Background(), &access.Caller{ID: "root", Role: access.RoleAdmin})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bases) != 0 {
		t.Errorf("bases = %v, want empty", bases)
	}
}

func TestUpdatePermissions(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/knowledge-bases/kb-1/permissions", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": "updated"},
	})

	svc := newTestService(t, []string{up.URL()}, []string{"key"}, nil)
	caller := &access.Caller{ID: "root", Role: access.RoleAdmin}

	response, err := svc.UpdatePermissions(context.Background(), caller, "external_0_kb-1", map[string]any{"read": true})
	if err != nil {
		t.Fatalf("UpdatePermissions() error = %v", err)
	}
	if response["status"] != "updated" {
		t.Errorf("response = %v", response)
	}

	if _, err := svc.UpdatePermissions(context.Background(), caller, "not-namespaced", nil); err == nil {
		t.Error("UpdatePermissions() accepted a non-namespaced id")
	}

	// A connection index outside the configured range makes the id itself
	// invalid.
	_, err = svc.UpdatePermissions(context.Background(), caller, "external_9_kb-1", nil)
	var invalid *InvalidResourceIDError
	if !errors.As(err, &invalid) {
		t.Errorf("out-of-range connection error = %v, want InvalidResourceIDError", err)
	}
}

func TestBulkUpdatePartialFailure(t *testing.T) {
	up := gatewaytest.NewMockUpstream()
	defer up.Close()
	up.SetResponse("/knowledge-bases/bulk-permissions", gatewaytest.MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{
			"success_count": 1,
			"failed_updates": []map[string]any{
				{"id": "kb-2", "error": "permission denied"},
			},
		},
	})

	svc := newTestService(t, []string{up.URL()}, []string{"key"}, nil)
	caller := &access.Caller{ID: "root", Role: access.RoleAdmin}

	ids := []string{
		"external_0_kb-1",
		"external_0_kb-2",
		"garbage",
		"external_7_kb-3",
	}
	result, err := svc.BulkUpdate(context.Background(), caller, ids, map[string]any{"read": true})
	if err != nil {
		t.Fatalf("BulkUpdate() error = %v", err)
	}

	if result.TotalRequested != 4 {
		t.Errorf("TotalRequested = %d, want 4", result.TotalRequested)
	}
	// The success count comes from the connection's own report, not the
	// batch size.
	if result.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", result.SuccessCount)
	}
	if len(result.FailedUpdates) != 3 {
		t.Fatalf("FailedUpdates = %v, want 3 entries", result.FailedUpdates)
	}

	failed := map[string]bool{}
	for _, f := range result.FailedUpdates {
		id, _ := f["id"].(string)
		failed[id] = true
	}
	// The connection-reported failure comes back under its namespaced id.
	for _, want := range []string{"garbage", "external_7_kb-3", "external_0_kb-2"} {
		if !failed[want] {
			t.Errorf("failed ids = %v, missing %s", failed, want)
		}
	}

	var sent map[string]any
	if err := json.Unmarshal(up.LastBody(), &sent); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	kbIDs, _ := sent["knowledge_base_ids"].([]any)
	if len(kbIDs) != 2 || kbIDs[0] != "kb-1" || kbIDs[1] != "kb-2" {
		t.Errorf("knowledge_base_ids = %v, want [kb-1 kb-2]", sent["knowledge_base_ids"])
	}
	if _, ok := sent["access_control"].(map[string]any); !ok {
		t.Errorf("access_control missing from request body: %v", sent)
	}
}
