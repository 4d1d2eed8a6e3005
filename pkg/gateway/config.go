package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
)

// connectionSettings is the admin view of the connection set.
type connectionSettings struct {
	Enable      *bool                                `json:"enable,omitempty"`
	BaseURLs    []string                             `json:"base_urls"`
	APIKeys     []string                             `json:"api_keys"`
	Connections map[string]registry.ConnectionConfig `json:"connections"`
}

// handleGetConfig returns the current connection configuration. Admin only;
// it exposes API keys.
func (g *Gateway) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.requireAdmin(w, r); !ok {
		return
	}

	enabled := g.state.Snapshot().Enabled
	writeJSON(w, http.StatusOK, connectionSettings{
		Enable:      &enabled,
		BaseURLs:    g.registry.URLs(),
		APIKeys:     g.registry.Keys(),
		Connections: g.registry.Configs(),
	})
}

// handleUpdateConfig replaces the connection configuration. Key and config
// lists are reconciled against the url list, so partial updates never leave
// the registry inconsistent.
func (g *Gateway) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.requireAdmin(w, r); !ok {
		return
	}

	var form connectionSettings
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if form.Enable != nil {
		g.state.Update(func(s *Settings) { s.Enabled = *form.Enable })
	}
	if form.BaseURLs != nil {
		g.registry.SetURLs(form.BaseURLs)
	}
	if form.APIKeys != nil {
		g.registry.SetKeys(form.APIKeys)
	}
	if form.Connections != nil {
		g.registry.SetConfigs(form.Connections)
	}

	g.logger.Info("connection configuration updated",
		"connections", len(g.registry.URLs()),
	)

	enabled := g.state.Snapshot().Enabled
	writeJSON(w, http.StatusOK, connectionSettings{
		Enable:      &enabled,
		BaseURLs:    g.registry.URLs(),
		APIKeys:     g.registry.Keys(),
		Connections: g.registry.Configs(),
	})
}
