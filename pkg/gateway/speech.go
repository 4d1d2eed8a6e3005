package gateway

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/speechcache"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// handleSpeech synthesizes audio through the canonical connection, caching
// results by request body so identical requests never hit upstream twice.
func (g *Gateway) handleSpeech(w http.ResponseWriter, r *http.Request) {
	caller := g.caller(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if g.speech != nil {
		if path, ok := g.speech.Get(speechcache.Key(body)); ok {
			g.serveAudio(w, r, path)
			return
		}
	}

	conn, ok := g.canonicalConnection()
	if !ok {
		writeDetail(w, http.StatusNotFound, "No canonical speech connection configured")
		return
	}

	settings := g.state.Snapshot()
	timeout := settings.RequestTimeout
	if timeout == 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+conn.APIKey)
	if settings.ForwardIdentity {
		for k, v := range translate.IdentityHeaders(caller) {
			header[k] = v
		}
	}

	resp, err := g.client.Do(ctx, http.MethodPost, conn.BaseURL+"/audio/speech", body, header)
	if err != nil {
		writeError(w, &upstream.Error{Message: upstream.FallbackMessage, Cause: err})
		return
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, &upstream.Error{Message: upstream.FallbackMessage, Cause: err})
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		writeError(w, &upstream.Error{
			StatusCode: resp.StatusCode,
			Message:    upstream.ExtractErrorDetail(audio, upstream.FallbackMessage),
		})
		return
	}

	if g.speech != nil {
		path, err := g.speech.Put(speechcache.Key(body), body, audio)
		if err == nil {
			g.serveAudio(w, r, path)
			return
		}
		g.logger.Warn("failed to cache synthesized audio", "error", err)
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// serveAudio serves a cached audio file.
func (g *Gateway) serveAudio(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}

// canonicalConnection returns the first connection pointing at the
// canonical host.
func (g *Gateway) canonicalConnection() (registry.Connection, bool) {
	for _, c := range g.registry.Connections() {
		if strings.Contains(c.BaseURL, translate.CanonicalHost) {
			return c, true
		}
	}
	return registry.Connection{}, false
}
