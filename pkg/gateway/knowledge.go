package gateway

import (
	"encoding/json"
	"net/http"
)

// handleListKnowledgeBases returns local and discovered knowledge bases
// visible to the caller.
func (g *Gateway) handleListKnowledgeBases(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)

	bases, err := g.knowledge.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bases)
}

// handleUpdatePermissions forwards a permission update to the connection
// owning the knowledge base.
func (g *Gateway) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := g.requireAdmin(w, r)
	if !ok {
		return
	}

	var permissions map[string]any
	if err := json.NewDecoder(r.Body).Decode(&permissions); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := g.knowledge.UpdatePermissions(r.Context(), caller, r.PathValue("id"), permissions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// bulkPermissionsForm is the bulk update request body.
type bulkPermissionsForm struct {
	IDs         []string       `json:"ids"`
	Permissions map[string]any `json:"permissions"`
}

// handleBulkPermissions applies one permission set to many knowledge bases,
// grouped per connection. Partial failure never fails the whole batch.
func (g *Gateway) handleBulkPermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := g.requireAdmin(w, r)
	if !ok {
		return
	}

	var form bulkPermissionsForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil || len(form.IDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := g.knowledge.BulkUpdate(r.Context(), caller, form.IDs, form.Permissions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
