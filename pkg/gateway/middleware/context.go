// Package middleware provides the HTTP middleware chain for the gateway:
// panic recovery, request logging, request ids, and API key authentication.
package middleware

import (
	"context"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
)

// contextKey is a private type for context keys defined in this package.
type contextKey string

const (
	// requestIDKey holds the request id.
	requestIDKey contextKey = "request_id"

	// callerKey holds the authenticated caller.
	callerKey contextKey = "caller"
)

// GetRequestID extracts the request id from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetCaller extracts the authenticated caller from the context.
func GetCaller(ctx context.Context) (*access.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(*access.Caller)
	return caller, ok
}

// WithCaller returns a context carrying the caller. Exposed for handler
// tests that bypass the auth middleware.
func WithCaller(ctx context.Context, caller *access.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}
