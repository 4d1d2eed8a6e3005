package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
)

// verifyForm is a candidate connection to probe without registering it.
type verifyForm struct {
	URL    string                    `json:"url"`
	Key    string                    `json:"key"`
	Config registry.ConnectionConfig `json:"config"`
}

// handleVerify probes a candidate connection's model listing so an
// administrator can check credentials before saving them.
func (g *Gateway) handleVerify(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.requireAdmin(w, r); !ok {
		return
	}

	var form verifyForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil || form.URL == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := g.state.Snapshot()
	timeout := settings.ListTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var (
		probeURL string
		header   = http.Header{}
	)
	if form.Config.Azure {
		version := form.Config.APIVersion
		if version == "" {
			version = translate.DefaultAPIVersion
		}
		probeURL = fmt.Sprintf("%s/openai/models?api-version=%s", form.URL, version)
		header.Set("api-key", form.Key)
	} else {
		probeURL = form.URL + "/models"
		header.Set("Authorization", "Bearer "+form.Key)
	}

	response, err := g.client.GetJSON(ctx, probeURL, header)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}
