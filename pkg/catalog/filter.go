package catalog

import (
	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/store"
)

// Filter post-filters catalog entries against the caller's access rights.
// Privileged callers (admin role, or when access control is globally
// bypassed) see the catalog unchanged. For everyone else an entry survives
// only if the model registry has a record for it and the caller either owns
// the record or holds read access; entries without a record are dropped.
type Filter struct {
	Models  store.ModelStore
	Checker access.Checker

	// Bypass reports whether access control is globally disabled.
	Bypass func() bool
}

// Apply returns the entries visible to the caller.
func (f *Filter) Apply(entries []*Entry, caller *access.Caller) []*Entry {
	if caller.IsAdmin() || (f.Bypass != nil && f.Bypass()) {
		return entries
	}

	filtered := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		rec, err := f.Models.GetModel(e.ID)
		if err != nil {
			// No record, or registry failure: fail closed.
			continue
		}
		if rec.UserID == caller.ID || f.Checker.HasAccess(caller.ID, "read", rec.AccessControl) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
