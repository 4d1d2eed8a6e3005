// Package catalog aggregates the model lists of all enabled connections into
// a single merged catalog. Aggregation fans out one list call per connection,
// waits for all of them, and merges the results in connection index order so
// the catalog is deterministic regardless of network completion order.
//
// The merged catalog is cached for a short window with in-flight coalescing:
// concurrent callers inside the window share exactly one aggregation cycle.
// A process-wide id index, consumed by the request router, is atomically
// replaced as a side effect of every cycle.
package catalog

import "encoding/json"

// Entry is one model in the merged catalog. Raw carries the annotated
// upstream record and is what serializes to the wire; the typed fields are
// derived from it at merge time and never mutated afterwards.
type Entry struct {
	// ID is the logical model id, including any connection prefix.
	ID string

	// Name is the display name, defaulting to the id.
	Name string

	// OwnerIndex is the connection index that owns this model.
	OwnerIndex int

	// ConnectionType is the owning connection's declared type.
	ConnectionType string

	// Raw is the annotated upstream record.
	Raw map[string]any
}

// MarshalJSON serializes the annotated upstream record as-is.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Raw)
}

// Pipeline reports whether the upstream record flags this model as a
// pipeline, which makes the router inject caller identity into the payload.
func (e *Entry) Pipeline() bool {
	v, ok := e.Raw["pipeline"]
	return ok && v != nil && v != false
}

// Catalog is the merged, ordered model listing.
type Catalog struct {
	Entries []*Entry
}

// MarshalJSON renders the catalog in the OpenAI list shape.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	entries := c.Entries
	if entries == nil {
		entries = []*Entry{}
	}
	return json.Marshal(map[string]any{"data": entries})
}
