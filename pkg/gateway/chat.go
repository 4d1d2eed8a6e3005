package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ISA-Forensic/GiSaWeb/pkg/relay"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
)

// handleChatCompletions routes a chat completion to the connection owning
// the requested model and relays the response, streaming or buffered.
func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)
	settings := g.state.Snapshot()

	if !settings.Enabled {
		writeDetail(w, http.StatusServiceUnavailable, "OpenAI API access is disabled")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	decision, err := g.router.Route(r.Context(), caller, payload, settings.Bypass)
	if err != nil {
		writeError(w, err)
		return
	}

	req, err := translate.ChatCompletion(decision.Connection, decision.Payload, caller, settings.ForwardIdentity)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := g.relay.Do(r.Context(), req, decision.Connection.Index, "chat_completions")
	if err != nil {
		writeError(w, err)
		return
	}

	g.writeRelayResult(w, result)
}

// writeRelayResult writes a relay result downstream, streaming event
// streams chunk by chunk.
func (g *Gateway) writeRelayResult(w http.ResponseWriter, result *relay.Result) {
	if result.Streaming {
		defer result.Body.Close()
		copyStreamHeaders(w.Header(), result.Header)
		w.WriteHeader(result.Status)
		streamCopy(w, result.Body)
		return
	}

	if result.JSON != nil {
		writeJSON(w, result.Status, result.JSON)
		return
	}

	if ct := result.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Raw)
}

// copyStreamHeaders carries over the headers that matter for an event
// stream. Hop-by-hop headers stay behind.
func copyStreamHeaders(dst, src http.Header) {
	for _, name := range []string{"Content-Type", "Cache-Control"} {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}

// streamCopy relays the upstream body chunk by chunk, flushing after every
// write so events reach the client as they arrive. A downstream write
// failure stops the copy; closing the body afterwards releases the upstream
// connection.
func streamCopy(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}
