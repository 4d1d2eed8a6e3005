package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
)

type combinedStore interface {
	ModelStore
	KnowledgeStore
}

// backends runs a subtest against each store implementation so the in-memory
// and SQLite backends stay behaviorally aligned.
func backends(t *testing.T, fn func(t *testing.T, s combinedStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestModelLifecycle(t *testing.T) {
	backends(t, func(t *testing.T, s combinedStore) {
		rec := &ModelRecord{
			ID:          "my-assistant",
			UserID:      "alice",
			BaseModelID: "gpt-4o",
			Params: map[string]any{
				"temperature": float64(0.2),
				"system":      "Be brief.",
			},
			AccessControl: &access.Control{
				Read: access.Grant{UserIDs: []string{"bob"}},
			},
		}
		if err := s.UpsertModel(rec); err != nil {
			t.Fatalf("UpsertModel() error = %v", err)
		}

		got, err := s.GetModel("my-assistant")
		if err != nil {
			t.Fatalf("GetModel() error = %v", err)
		}
		if got.UserID != "alice" || got.BaseModelID != "gpt-4o" {
			t.Errorf("record = %+v", got)
		}
		if !reflect.DeepEqual(got.Params, rec.Params) {
			t.Errorf("Params = %v, want %v", got.Params, rec.Params)
		}
		if got.AccessControl == nil || !reflect.DeepEqual(got.AccessControl.Read.UserIDs, []string{"bob"}) {
			t.Errorf("AccessControl = %+v", got.AccessControl)
		}

		// Upsert replaces the existing record.
		rec.BaseModelID = "gpt-4o-mini"
		rec.AccessControl = nil
		if err := s.UpsertModel(rec); err != nil {
			t.Fatalf("UpsertModel() replace error = %v", err)
		}
		got, err = s.GetModel("my-assistant")
		if err != nil {
			t.Fatalf("GetModel() after replace error = %v", err)
		}
		if got.BaseModelID != "gpt-4o-mini" {
			t.Errorf("BaseModelID = %q, want gpt-4o-mini", got.BaseModelID)
		}
		if got.AccessControl != nil {
			t.Errorf("AccessControl = %+v, want nil after replace", got.AccessControl)
		}

		if err := s.DeleteModel("my-assistant"); err != nil {
			t.Fatalf("DeleteModel() error = %v", err)
		}
		if _, err := s.GetModel("my-assistant"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetModel() after delete error = %v, want ErrNotFound", err)
		}
	})
}

func TestGetModelMissing(t *testing.T) {
	backends(t, func(t *testing.T, s combinedStore) {
		if _, err := s.GetModel("nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetModel() error = %v, want ErrNotFound", err)
		}
	})
}

func TestKnowledgeListOrdering(t *testing.T) {
	backends(t, func(t *testing.T, s combinedStore) {
		records := []*KnowledgeRecord{
			{ID: "zeta", Name: "Z", UserID: "alice"},
			{ID: "alpha", Name: "A", UserID: "bob", Description: "first"},
			{ID: "mid", Name: "M", UserID: "alice", AccessControl: &access.Control{}},
		}
		for _, rec := range records {
			if err := s.UpsertKnowledge(rec); err != nil {
				t.Fatalf("UpsertKnowledge(%q) error = %v", rec.ID, err)
			}
		}

		got, err := s.ListKnowledge()
		if err != nil {
			t.Fatalf("ListKnowledge() error = %v", err)
		}

		wantIDs := []string{"alpha", "mid", "zeta"}
		if len(got) != len(wantIDs) {
			t.Fatalf("len = %d, want %d", len(got), len(wantIDs))
		}
		for i, want := range wantIDs {
			if got[i].ID != want {
				t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
			}
		}
		if got[0].Description != "first" {
			t.Errorf("Description = %q, want first", got[0].Description)
		}
		if got[1].AccessControl == nil {
			t.Error("explicit empty access control dropped on round trip")
		}
		if got[2].AccessControl != nil {
			t.Errorf("AccessControl = %+v, want nil", got[2].AccessControl)
		}
	})
}
