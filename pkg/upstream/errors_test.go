package upstream

import (
	"errors"
	"testing"
)

func TestExtractErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "string error field",
			body: `{"error": "quota exceeded"}`,
			want: "quota exceeded",
		},
		{
			name: "object error with message",
			body: `{"error": {"message": "invalid model", "type": "invalid_request_error"}}`,
			want: "invalid model",
		},
		{
			name: "no error field",
			body: `{"data": []}`,
			want: FallbackMessage,
		},
		{
			name: "not json",
			body: "<html>502 Bad Gateway</html>",
			want: FallbackMessage,
		},
		{
			name: "numeric error field",
			body: `{"error": 500}`,
			want: FallbackMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractErrorDetail([]byte(tt.body), FallbackMessage); got != tt.want {
				t.Errorf("ExtractErrorDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorHTTPStatus(t *testing.T) {
	withStatus := &Error{StatusCode: 429, Message: "rate limited"}
	if got := withStatus.HTTPStatus(); got != 429 {
		t.Errorf("HTTPStatus() = %d, want 429", got)
	}

	withoutStatus := &Error{Message: FallbackMessage}
	if got := withoutStatus.HTTPStatus(); got != 500 {
		t.Errorf("HTTPStatus() = %d, want 500", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &Error{Message: FallbackMessage, Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find the cause")
	}
}
