package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ISA-Forensic/GiSaWeb/pkg/auth"
)

// Auth authenticates requests with a gateway API key from the Authorization
// header (Bearer scheme) and attaches the resolved caller to the context.
func Auth(validator *auth.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bearerToken(r)
			if key == "" {
				slog.WarnContext(r.Context(), "missing API key",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				unauthorized(w, "Missing API key")
				return
			}

			info, err := validator.Validate(key)
			if err != nil {
				slog.WarnContext(r.Context(), "invalid API key",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				unauthorized(w, "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, info.Caller())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the Bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	value := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(value, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"detail": detail})
}
