// Package route resolves a logical model id to the connection that owns it
// and prepares the payload for dispatch: base-model substitution, stored
// parameter overrides, system prompt injection, dispatch-time access
// control, and connection prefix stripping.
package route

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/catalog"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/store"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
)

// Decision is the outcome of routing: the owning connection and the payload
// rewritten for dispatch.
type Decision struct {
	Connection registry.Connection
	Payload    map[string]any
}

// Router routes chat completion payloads.
type Router struct {
	registry   *registry.Registry
	aggregator *catalog.Aggregator
	models     store.ModelStore
	checker    access.Checker
	logger     *slog.Logger
}

// NewRouter creates a router.
func NewRouter(reg *registry.Registry, agg *catalog.Aggregator, models store.ModelStore, checker access.Checker) *Router {
	return &Router{
		registry:   reg,
		aggregator: agg,
		models:     models,
		checker:    checker,
		logger:     slog.Default().With("component", "route"),
	}
}

// Route resolves the payload's model to a connection. Access control runs
// here at dispatch time even when the catalog shown to the caller was
// already filtered.
func (r *Router) Route(ctx context.Context, caller *access.Caller, payload map[string]any, bypass bool) (*Decision, error) {
	modelID, _ := payload["model"].(string)

	rec, err := r.models.GetModel(modelID)
	switch {
	case err == nil:
		if rec.BaseModelID != "" {
			payload["model"] = rec.BaseModelID
			modelID = rec.BaseModelID
		}

		if len(rec.Params) > 0 {
			system, _ := rec.Params["system"].(string)
			params := make(map[string]any, len(rec.Params))
			for k, v := range rec.Params {
				if k != "system" {
					params[k] = v
				}
			}
			// Parameter application must precede prompt injection; the
			// injected prompt may reference applied parameters.
			payload = translate.ApplyParams(params, payload)
			payload = translate.ApplySystemPrompt(system, payload)
		}

		if !bypass && !caller.IsAdmin() {
			if rec.UserID != caller.ID && !r.checker.HasAccess(caller.ID, "read", rec.AccessControl) {
				return nil, &AccessDeniedError{Model: modelID}
			}
		}

	case errors.Is(err, store.ErrNotFound):
		if !bypass && !caller.IsAdmin() {
			return nil, &ModelNotFoundError{Model: modelID}
		}

	default:
		r.logger.Error("model registry lookup failed", "model", modelID, "error", err)
		if !bypass && !caller.IsAdmin() {
			return nil, &ModelNotFoundError{Model: modelID}
		}
	}

	// Refresh the catalog index, then resolve the owning connection.
	if _, err := r.aggregator.ListAll(ctx, caller); err != nil {
		return nil, err
	}
	entry, ok := r.aggregator.Lookup(modelID)
	if !ok {
		return nil, &ModelNotFoundError{Model: modelID}
	}

	conn, ok := r.registry.Get(entry.OwnerIndex)
	if !ok {
		return nil, &ModelNotFoundError{Model: modelID}
	}

	if prefix := conn.Config.PrefixID; prefix != "" {
		if current, ok := payload["model"].(string); ok {
			payload["model"] = strings.TrimPrefix(current, prefix+".")
		}
	}

	if entry.Pipeline() {
		payload["user"] = map[string]any{
			"name":  caller.Name,
			"id":    caller.ID,
			"email": caller.Email,
			"role":  caller.Role,
		}
	}

	return &Decision{Connection: conn, Payload: payload}, nil
}
