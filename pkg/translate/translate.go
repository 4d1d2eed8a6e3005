// Package translate rewrites outgoing request payloads, target URLs, and
// header sets for each upstream dialect.
//
// Two dialects exist. The passthrough dialect forwards the payload almost
// as-is, with reasoning-family parameter renames. The managed-deployment
// (Azure-style) dialect additionally whitelists payload fields and embeds
// the model id in the target path as a deployment segment.
package translate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
)

// CanonicalHost identifies the canonical default connection; the model-family
// denylist and the max_tokens back-compat rename key off this host.
const CanonicalHost = "api.openai.com"

// DefaultAPIVersion is used for managed-deployment connections that do not
// configure one.
const DefaultAPIVersion = "2023-03-15-preview"

// attributionHost triggers the vendor attribution header pair.
const attributionHost = "openrouter.ai"

// Identity header names forwarded to upstreams when enabled.
const (
	HeaderUserName  = "X-GiSaWeb-User-Name"
	HeaderUserID    = "X-GiSaWeb-User-Id"
	HeaderUserEmail = "X-GiSaWeb-User-Email"
	HeaderUserRole  = "X-GiSaWeb-User-Role"
)

// Request is the fully translated outbound request.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// IsReasoningModel reports whether the model id belongs to the reasoning
// family that requires parameter renames and system-role reclassification.
func IsReasoningModel(id string) bool {
	lower := strings.ToLower(id)
	return strings.HasPrefix(lower, "o1") ||
		strings.HasPrefix(lower, "o3") ||
		strings.HasPrefix(lower, "o4")
}

// ApplyReasoningRewrite rewrites a payload for reasoning-family models:
// max_tokens becomes max_completion_tokens, and a leading system message is
// downgraded to the user role for the o1-mini/o1-preview legacy sub-family
// or upgraded to the developer role otherwise.
func ApplyReasoningRewrite(payload map[string]any) {
	if v, ok := payload["max_tokens"]; ok {
		payload["max_completion_tokens"] = v
		delete(payload, "max_tokens")
	}

	messages, _ := payload["messages"].([]any)
	if len(messages) == 0 {
		return
	}
	first, ok := messages[0].(map[string]any)
	if !ok || first["role"] != "system" {
		return
	}

	model, _ := payload["model"].(string)
	lower := strings.ToLower(model)
	if strings.HasPrefix(lower, "o1-mini") || strings.HasPrefix(lower, "o1-preview") {
		first["role"] = "user"
	} else {
		first["role"] = "developer"
	}
}

// azureAllowedParams is the fixed field allow-list of the managed-deployment
// dialect. Fields outside this set are silently dropped.
var azureAllowedParams = map[string]struct{}{
	"messages":              {},
	"temperature":           {},
	"role":                  {},
	"content":               {},
	"contentPart":           {},
	"contentPartImage":      {},
	"enhancements":          {},
	"dataSources":           {},
	"n":                     {},
	"stream":                {},
	"stop":                  {},
	"max_tokens":            {},
	"presence_penalty":      {},
	"frequency_penalty":     {},
	"logit_bias":            {},
	"user":                  {},
	"function_call":         {},
	"functions":             {},
	"tools":                 {},
	"tool_choice":           {},
	"top_p":                 {},
	"log_probs":             {},
	"top_logprobs":          {},
	"response_format":       {},
	"seed":                  {},
	"max_completion_tokens": {},
}

// ConvertToAzure rewrites a payload and base URL into the managed-deployment
// dialect: the model id becomes a deployment path segment and fields outside
// the allow-list are dropped. Reasoning o*-mini models additionally get the
// max_tokens rename, and a temperature override other than the family's only
// supported value (1) is removed entirely.
func ConvertToAzure(baseURL string, payload map[string]any) (string, map[string]any) {
	model, _ := payload["model"].(string)

	if strings.HasPrefix(model, "o") && strings.HasSuffix(model, "-mini") {
		if v, ok := payload["max_tokens"]; ok {
			payload["max_completion_tokens"] = v
			delete(payload, "max_tokens")
		}
		if temp, ok := payload["temperature"]; ok && !equalsOne(temp) {
			delete(payload, "temperature")
		}
	}

	filtered := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, ok := azureAllowedParams[k]; ok {
			filtered[k] = v
		}
	}

	return fmt.Sprintf("%s/openai/deployments/%s", baseURL, model), filtered
}

func equalsOne(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == 1
	case int:
		return n == 1
	case json.Number:
		f, err := n.Float64()
		return err == nil && f == 1
	default:
		return false
	}
}

// IdentityHeaders returns the caller identity header set forwarded to
// upstream connections when the feature is enabled.
func IdentityHeaders(caller *access.Caller) http.Header {
	h := http.Header{}
	if caller == nil {
		return h
	}
	h.Set(HeaderUserName, caller.Name)
	h.Set(HeaderUserID, caller.ID)
	h.Set(HeaderUserEmail, caller.Email)
	h.Set(HeaderUserRole, caller.Role)
	return h
}

// ChatCompletion translates a routed chat payload into the final outbound
// request for the given connection, selecting the dialect from the
// connection config.
func ChatCompletion(conn registry.Connection, payload map[string]any, caller *access.Caller, forwardIdentity bool) (*Request, error) {
	model, _ := payload["model"].(string)

	if IsReasoningModel(model) {
		ApplyReasoningRewrite(payload)
	} else if !strings.Contains(conn.BaseURL, CanonicalHost) {
		// Older OpenAI-compatible servers only understand max_tokens.
		if v, ok := payload["max_completion_tokens"]; ok {
			payload["max_tokens"] = v
			delete(payload, "max_completion_tokens")
		}
	}

	// Never send both spellings of the limit.
	if _, hasOld := payload["max_tokens"]; hasOld {
		if _, hasNew := payload["max_completion_tokens"]; hasNew {
			delete(payload, "max_tokens")
		}
	}

	NormalizeLogitBias(payload)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if strings.Contains(conn.BaseURL, attributionHost) {
		header.Set("HTTP-Referer", "https://gisaweb.com/")
		header.Set("X-Title", "GiSaWeb")
	}
	if forwardIdentity {
		for k, v := range IdentityHeaders(caller) {
			header[k] = v
		}
	}

	var targetURL string
	if conn.Config.Azure {
		deploymentURL, filtered := ConvertToAzure(conn.BaseURL, payload)
		payload = filtered

		apiVersion := conn.Config.APIVersion
		if apiVersion == "" {
			apiVersion = DefaultAPIVersion
		}
		header.Set("api-key", conn.APIKey)
		header.Set("api-version", apiVersion)
		targetURL = fmt.Sprintf("%s/chat/completions?api-version=%s", deploymentURL, apiVersion)
	} else {
		header.Set("Authorization", "Bearer "+conn.APIKey)
		targetURL = conn.BaseURL + "/chat/completions"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return &Request{
		Method: http.MethodPost,
		URL:    targetURL,
		Body:   body,
		Header: header,
	}, nil
}
