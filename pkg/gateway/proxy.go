package gateway

import (
	"io"
	"net/http"

	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
)

// handleProxy is the deprecated passthrough: any unmatched /openai/* path is
// forwarded verbatim to connection 0. Kept for clients that predate explicit
// routing.
func (g *Gateway) handleProxy(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)
	settings := g.state.Snapshot()

	if !settings.Enabled {
		writeDetail(w, http.StatusServiceUnavailable, "OpenAI API access is disabled")
		return
	}

	conn, ok := g.registry.Get(0)
	if !ok {
		writeDetail(w, http.StatusNotFound, "No connection configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	header := http.Header{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	header.Set("Authorization", "Bearer "+conn.APIKey)
	if settings.ForwardIdentity {
		for k, v := range translate.IdentityHeaders(caller) {
			header[k] = v
		}
	}

	req := &translate.Request{
		Method: r.Method,
		URL:    conn.BaseURL + "/" + r.PathValue("path"),
		Body:   body,
		Header: header,
	}

	result, err := g.relay.Do(r.Context(), req, conn.Index, "proxy")
	if err != nil {
		writeError(w, err)
		return
	}

	g.writeRelayResult(w, result)
}
