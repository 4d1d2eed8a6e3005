package store

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of ModelStore and
// KnowledgeStore. All data is lost on restart; it is intended for tests
// and ephemeral deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	models    map[string]*ModelRecord
	knowledge map[string]*KnowledgeRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models:    make(map[string]*ModelRecord),
		knowledge: make(map[string]*KnowledgeRecord),
	}
}

// GetModel implements ModelStore.
func (s *MemoryStore) GetModel(id string) (*ModelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.models[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// UpsertModel implements ModelStore.
func (s *MemoryStore) UpsertModel(rec *ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.models[rec.ID] = &cp
	return nil
}

// DeleteModel implements ModelStore.
func (s *MemoryStore) DeleteModel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.models, id)
	return nil
}

// ListKnowledge implements KnowledgeStore.
func (s *MemoryStore) ListKnowledge() ([]*KnowledgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*KnowledgeRecord, 0, len(s.knowledge))
	for _, rec := range s.knowledge {
		cp := *rec
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// UpsertKnowledge implements KnowledgeStore.
func (s *MemoryStore) UpsertKnowledge(rec *KnowledgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.knowledge[rec.ID] = &cp
	return nil
}
