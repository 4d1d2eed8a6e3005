package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ISA-Forensic/GiSaWeb/pkg/knowledge"
	"github.com/ISA-Forensic/GiSaWeb/pkg/route"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeDetail writes an error detail envelope with the given status.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

// writeError maps a service error to its HTTP status and detail envelope.
func writeError(w http.ResponseWriter, err error) {
	var (
		upstreamErr *upstream.Error
		notFoundErr *route.ModelNotFoundError
		deniedErr   *route.AccessDeniedError
		badIDErr    *knowledge.InvalidResourceIDError
	)

	switch {
	case errors.As(err, &notFoundErr):
		writeDetail(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &deniedErr):
		writeDetail(w, http.StatusForbidden, deniedErr.Error())
	case errors.As(err, &badIDErr):
		writeDetail(w, http.StatusBadRequest, badIDErr.Error())
	case errors.As(err, &upstreamErr):
		writeDetail(w, upstreamErr.HTTPStatus(), upstreamErr.Message)
	default:
		writeDetail(w, http.StatusInternalServerError, upstream.FallbackMessage)
	}
}
