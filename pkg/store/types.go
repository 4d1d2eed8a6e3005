// Package store persists the gateway's local model and knowledge base
// records. Records carry ownership and access control consulted by the
// access filter and the request router.
//
// Two backends are provided: an in-memory backend for tests and small
// deployments, and a SQLite backend for durable storage.
package store

import (
	"errors"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// ModelRecord is a locally registered model. A record may point at a base
// model on an upstream connection and carry parameter overrides and a system
// prompt applied at routing time.
type ModelRecord struct {
	// ID is the logical model id clients request.
	ID string `json:"id"`

	// UserID is the owner of the record.
	UserID string `json:"user_id"`

	// BaseModelID, when set, is substituted for ID before forwarding.
	BaseModelID string `json:"base_model_id,omitempty"`

	// Params are parameter overrides merged into outgoing payloads.
	// The "system" key is treated as a system prompt, not a parameter.
	Params map[string]any `json:"params,omitempty"`

	// AccessControl governs who may read (use) the model.
	AccessControl *access.Control `json:"access_control,omitempty"`
}

// KnowledgeRecord is a locally registered knowledge base.
type KnowledgeRecord struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	UserID        string          `json:"user_id"`
	AccessControl *access.Control `json:"access_control,omitempty"`
}

// ModelStore is the model registry collaborator consumed by the access
// filter and the request router.
type ModelStore interface {
	// GetModel returns the record for a logical model id.
	// Returns ErrNotFound when no record exists.
	GetModel(id string) (*ModelRecord, error)

	// UpsertModel creates or replaces a model record.
	UpsertModel(rec *ModelRecord) error

	// DeleteModel removes a model record.
	DeleteModel(id string) error
}

// KnowledgeStore lists local knowledge bases for the aggregated
// knowledge-base endpoint.
type KnowledgeStore interface {
	// ListKnowledge returns all local knowledge base records.
	ListKnowledge() ([]*KnowledgeRecord, error)

	// UpsertKnowledge creates or replaces a knowledge base record.
	UpsertKnowledge(rec *KnowledgeRecord) error
}
