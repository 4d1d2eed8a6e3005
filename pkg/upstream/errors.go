package upstream

import (
	"encoding/json"
	"fmt"
)

// FallbackMessage is the canonical detail used when an upstream failure
// carries no parseable error envelope.
const FallbackMessage = "GiSaWeb: Server Connection Error"

// Error represents a failed call to an upstream connection. StatusCode is
// zero when the failure happened before any response was received.
type Error struct {
	// URL is the upstream request URL.
	URL string

	// StatusCode is the upstream HTTP status, or 0 if unknown.
	StatusCode int

	// Message is the detail surfaced to the caller. When the upstream
	// returned an error envelope, this is the extracted message.
	Message string

	// Cause is the underlying transport error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code to surface downstream: the upstream
// status when known, else 500.
func (e *Error) HTTPStatus() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return 500
}

// ExtractErrorDetail pulls the message out of an OpenAI-style error
// envelope ({"error": {"message": ...}} or {"error": "..."}). When the body
// is not parseable or has no error field, fallback is returned.
func ExtractErrorDetail(body []byte, fallback string) string {
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fallback
	}

	errField, ok := envelope["error"]
	if !ok {
		return fallback
	}

	switch v := errField.(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
		return fmt.Sprintf("%v", v)
	default:
		return fallback
	}
}
