package catalog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// ListConnection lists the models of a single connection. Unlike the fan-out
// path, upstream failures here surface to the caller as errors: the caller
// asked about this specific connection.
func (a *Aggregator) ListConnection(ctx context.Context, index int, caller *access.Caller) (map[string]any, error) {
	conn, ok := a.registry.Get(index)
	if !ok {
		return nil, &upstream.Error{StatusCode: http.StatusNotFound, Message: "connection not found"}
	}

	s := a.settings()

	// Managed-deployment connections have no discoverable listing; answer
	// from the configured allow-list.
	if conn.Config.Azure {
		ids := conn.Config.ModelIDs
		data := make([]any, 0, len(ids))
		for _, id := range ids {
			data = append(data, id)
		}
		return map[string]any{"data": data, "object": "list"}, nil
	}

	timeout := s.ListTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+conn.APIKey)
	if s.ForwardIdentity {
		for k, v := range translate.IdentityHeaders(caller) {
			header[k] = v
		}
	}

	start := time.Now()
	response, err := a.client.GetJSON(ctx, conn.BaseURL+"/models", header)
	a.metrics.RecordUpstreamRequest(conn.Index, "list_models", err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if strings.Contains(conn.BaseURL, translate.CanonicalHost) {
		if data, ok := response["data"].([]any); ok {
			filtered := make([]any, 0, len(data))
			for _, item := range data {
				rec, ok := item.(map[string]any)
				if !ok {
					continue
				}
				id, _ := rec["id"].(string)
				if matchesDenylist(id) {
					continue
				}
				filtered = append(filtered, item)
			}
			response["data"] = filtered
		}
	}

	return response, nil
}
