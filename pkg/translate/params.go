package translate

import (
	"encoding/json"
	"strconv"
	"strings"
)

// paramKeys is the closed set of stored model parameters merged into
// outgoing payloads. Keys outside this set are ignored.
var paramKeys = []string{
	"temperature",
	"top_p",
	"max_tokens",
	"frequency_penalty",
	"presence_penalty",
	"reasoning_effort",
	"seed",
	"stop",
	"logit_bias",
	"response_format",
}

// ApplyParams merges stored model parameter overrides into the payload.
// Stored overrides win over client-supplied values.
func ApplyParams(params map[string]any, payload map[string]any) map[string]any {
	for _, key := range paramKeys {
		if v, ok := params[key]; ok && v != nil {
			payload[key] = v
		}
	}
	return payload
}

// ApplySystemPrompt injects a stored system prompt into the payload: when a
// leading system message already exists its content is replaced, otherwise a
// system message is prepended. Must run after ApplyParams so that parameter
// application and prompt injection interact in the documented order.
func ApplySystemPrompt(system string, payload map[string]any) map[string]any {
	if system == "" {
		return payload
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) > 0 {
		if first, ok := messages[0].(map[string]any); ok && first["role"] == "system" {
			first["content"] = system
			return payload
		}
	}

	payload["messages"] = append([]any{map[string]any{
		"role":    "system",
		"content": system,
	}}, messages...)
	return payload
}

// NormalizeLogitBias converts the logit_bias field to the canonical JSON
// object form. Clients may send it as a JSON-encoded string or with
// non-string token keys; upstreams expect {"token_id": bias}.
func NormalizeLogitBias(payload map[string]any) {
	raw, ok := payload["logit_bias"]
	if !ok {
		return
	}

	switch v := raw.(type) {
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(normalizeBiasString(v)), &decoded); err == nil {
			payload["logit_bias"] = decoded
		}
	case map[string]any:
		// Already object form.
	default:
		delete(payload, "logit_bias")
	}
}

// normalizeBiasString accepts "token:bias,token:bias" shorthand and
// rewrites it as a JSON object literal.
func normalizeBiasString(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return s
	}

	var b strings.Builder
	b.WriteByte('{')
	pairs := strings.Split(s, ",")
	wrote := false
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if wrote {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(strings.TrimSpace(parts[0])))
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(parts[1]))
		wrote = true
	}
	b.WriteByte('}')
	return b.String()
}
