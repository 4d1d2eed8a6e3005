package gateway

import (
	"net/http"
	"strconv"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/catalog"
)

// handleListModels returns the merged model catalog, filtered to what the
// caller may see.
func (g *Gateway) handleListModels(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)

	cat, err := g.aggregator.ListAll(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := g.filter.Apply(cat.Entries, caller)
	data := make([]any, 0, len(entries))
	for _, e := range entries {
		data = append(data, e.Raw)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// handleListConnectionModels lists one connection's models. Any verified
// caller may ask; non-admins get the listing filtered to the models they may
// see.
func (g *Gateway) handleListConnectionModels(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)

	idx, err := strconv.Atoi(r.PathValue("idx"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid connection index")
		return
	}

	response, err := g.aggregator.ListConnection(r.Context(), idx, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.filterConnectionModels(response, caller))
}

// filterConnectionModels narrows a raw connection listing to the models the
// caller may see, using the same record-based rules as the merged catalog.
func (g *Gateway) filterConnectionModels(response map[string]any, caller *access.Caller) map[string]any {
	if caller.IsAdmin() || (g.filter.Bypass != nil && g.filter.Bypass()) {
		return response
	}

	items, ok := response["data"].([]any)
	if !ok {
		return response
	}

	entries := make([]*catalog.Entry, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			if id, ok := v["id"].(string); ok {
				entries = append(entries, &catalog.Entry{ID: id, Raw: v})
			}
		case string:
			entries = append(entries, &catalog.Entry{ID: v})
		}
	}

	visible := make(map[string]bool, len(entries))
	for _, e := range g.filter.Apply(entries, caller) {
		visible[e.ID] = true
	}

	filtered := make([]any, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			if id, ok := v["id"].(string); ok && visible[id] {
				filtered = append(filtered, item)
			}
		case string:
			if visible[v] {
				filtered = append(filtered, item)
			}
		}
	}

	out := make(map[string]any, len(response))
	for k, v := range response {
		out[k] = v
	}
	out["data"] = filtered
	return out
}
