// Package knowledge merges locally registered knowledge bases with ones
// discovered from connections, namespacing remote ids so they stay routable
// back to their source connection.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
	"github.com/ISA-Forensic/GiSaWeb/pkg/store"
	"github.com/ISA-Forensic/GiSaWeb/pkg/translate"
	"github.com/ISA-Forensic/GiSaWeb/pkg/upstream"
)

// externalPrefix namespaces remote knowledge base ids as
// external_{connection}_{id}. The foreign id may itself contain underscores,
// so parsing splits off exactly one index segment.
const externalPrefix = "external_"

// InvalidResourceIDError is returned for ids that do not carry a parseable
// connection namespace. Surfaced downstream as 400.
type InvalidResourceIDError struct {
	ID string
}

// Error implements the error interface.
func (e *InvalidResourceIDError) Error() string {
	return fmt.Sprintf("invalid knowledge base id %q", e.ID)
}

// ExternalID namespaces a remote knowledge base id under its connection.
func ExternalID(index int, foreignID string) string {
	return fmt.Sprintf("%s%d_%s", externalPrefix, index, foreignID)
}

// ParseExternalID splits a namespaced id into connection index and foreign
// id.
func ParseExternalID(id string) (int, string, error) {
	rest, ok := strings.CutPrefix(id, externalPrefix)
	if !ok {
		return 0, "", &InvalidResourceIDError{ID: id}
	}
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return 0, "", &InvalidResourceIDError{ID: id}
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", &InvalidResourceIDError{ID: id}
	}
	return index, parts[1], nil
}

// Settings are the knowledge service knobs, read per call.
type Settings struct {
	ForwardIdentity bool
	RequestTimeout  time.Duration
}

// Service lists and administers knowledge bases.
type Service struct {
	registry *registry.Registry
	client   *upstream.Client
	local    store.KnowledgeStore
	checker  access.Checker
	settings func() Settings
	logger   *slog.Logger
}

// NewService creates a knowledge service.
func NewService(reg *registry.Registry, client *upstream.Client, local store.KnowledgeStore, checker access.Checker, settings func() Settings) *Service {
	return &Service{
		registry: reg,
		client:   client,
		local:    local,
		checker:  checker,
		settings: settings,
		logger:   slog.Default().With("component", "knowledge"),
	}
}

// List returns the knowledge bases visible to the caller: local ones the
// caller can write, plus remote ones discovered from connections that the
// caller owns or holds read access to. Connections that are disabled or
// missing a url or key are skipped, as are ones whose discovery call fails.
func (s *Service) List(ctx context.Context, caller *access.Caller) ([]map[string]any, error) {
	s2 := s.settings()

	var out []map[string]any
	locals, err := s.local.ListKnowledge()
	if err != nil {
		return nil, err
	}
	for _, rec := range locals {
		if !caller.IsAdmin() {
			if rec.UserID != caller.ID && !s.checker.HasAccess(caller.ID, "write", rec.AccessControl) {
				continue
			}
		}
		out = append(out, map[string]any{
			"id":          rec.ID,
			"name":        rec.Name,
			"description": rec.Description,
			"user_id":     rec.UserID,
		})
	}

	conns := s.registry.Connections()
	results := make([][]map[string]any, len(conns))

	var wg sync.WaitGroup
	for i, conn := range conns {
		if conn.BaseURL == "" || conn.APIKey == "" || !conn.Config.IsEnabled() {
			continue
		}
		wg.Add(1)
		go func(i int, conn registry.Connection) {
			defer wg.Done()
			records, err := s.fetch(ctx, conn, caller, s2)
			if err != nil {
				s.logger.Warn("knowledge base discovery failed, skipping connection",
					"connection", conn.Index,
					"error", err,
				)
				return
			}
			results[i] = records
		}(i, conn)
	}
	wg.Wait()

	for i, records := range results {
		for _, record := range records {
			id := foreignID(record)
			if id == "" {
				continue
			}
			if !caller.IsAdmin() {
				owner, _ := record["user_id"].(string)
				if owner != caller.ID && !s.checker.HasAccess(caller.ID, "read", recordControl(record)) {
					continue
				}
			}
			namespaced := make(map[string]any, len(record)+1)
			for k, v := range record {
				namespaced[k] = v
			}
			namespaced["id"] = ExternalID(conns[i].Index, id)
			namespaced["connection"] = conns[i].Index
			out = append(out, namespaced)
		}
	}

	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// fetch discovers one connection's knowledge bases. Both the {"data": [...]}
// envelope and a bare JSON array are accepted.
func (s *Service) fetch(ctx context.Context, conn registry.Connection, caller *access.Caller, s2 Settings) ([]map[string]any, error) {
	timeout := s2.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := conn.BaseURL + "/knowledge-bases"
	resp, err := s.client.Do(ctx, http.MethodGet, url, nil, s.header(conn, caller, s2))
	if err != nil {
		return nil, &upstream.Error{URL: url, Message: upstream.FallbackMessage, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &upstream.Error{URL: url, Message: upstream.FallbackMessage, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &upstream.Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    upstream.ExtractErrorDetail(raw, upstream.FallbackMessage),
		}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &upstream.Error{URL: url, Message: "invalid JSON response", Cause: err}
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["data"].([]any)
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// foreignID resolves a remote record's id, accepting the alternate field
// names some backends use.
func foreignID(record map[string]any) string {
	for _, key := range []string{"id", "knowledge_base_id", "name"} {
		if v, ok := record[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// recordControl decodes a remote record's access control field. An absent or
// null field means public read; a malformed one fails closed.
func recordControl(record map[string]any) *access.Control {
	raw, ok := record["access_control"]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return &access.Control{}
	}
	var control access.Control
	if err := json.Unmarshal(b, &control); err != nil {
		return &access.Control{}
	}
	return &control
}

// UpdatePermissions forwards a permission update for one namespaced
// knowledge base to its source connection.
func (s *Service) UpdatePermissions(ctx context.Context, caller *access.Caller, id string, permissions map[string]any) (map[string]any, error) {
	index, foreignID, err := ParseExternalID(id)
	if err != nil {
		return nil, err
	}
	conn, ok := s.registry.Get(index)
	if !ok {
		// The namespace points at a connection that does not exist, so the
		// id itself is invalid.
		return nil, &InvalidResourceIDError{ID: id}
	}

	s2 := s.settings()
	body, err := json.Marshal(permissions)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/knowledge-bases/%s/permissions", conn.BaseURL, foreignID)
	response, err := s.postJSON(ctx, conn, caller, s2, url, body)
	if err != nil {
		return nil, err
	}
	return response, nil
}

// BulkResult summarizes a bulk permission update across connections.
type BulkResult struct {
	SuccessCount   int              `json:"success_count"`
	TotalRequested int              `json:"total_requested"`
	FailedUpdates  []map[string]any `json:"failed_updates"`
}

// BulkUpdate groups namespaced ids by connection and forwards one bulk call
// per connection. Each connection reports its own success count and failed
// updates; failures come back under the namespaced id, not the foreign one.
func (s *Service) BulkUpdate(ctx context.Context, caller *access.Caller, ids []string, permissions map[string]any) (*BulkResult, error) {
	result := &BulkResult{TotalRequested: len(ids), FailedUpdates: []map[string]any{}}

	type group struct {
		foreignIDs []string
		originals  []string
	}
	groups := map[int]*group{}
	for _, id := range ids {
		index, foreignID, err := ParseExternalID(id)
		if err != nil {
			result.FailedUpdates = append(result.FailedUpdates, map[string]any{
				"id":    id,
				"error": err.Error(),
			})
			continue
		}
		g := groups[index]
		if g == nil {
			g = &group{}
			groups[index] = g
		}
		g.foreignIDs = append(g.foreignIDs, foreignID)
		g.originals = append(g.originals, id)
	}

	s2 := s.settings()
	for index, g := range groups {
		conn, ok := s.registry.Get(index)
		if !ok {
			for _, id := range g.originals {
				result.FailedUpdates = append(result.FailedUpdates, map[string]any{
					"id":    id,
					"error": "invalid connection index",
				})
			}
			continue
		}

		body, err := json.Marshal(map[string]any{
			"knowledge_base_ids": g.foreignIDs,
			"access_control":     permissions,
		})
		if err != nil {
			return nil, err
		}

		url := conn.BaseURL + "/knowledge-bases/bulk-permissions"
		response, err := s.postJSON(ctx, conn, caller, s2, url, body)
		if err != nil {
			for _, id := range g.originals {
				result.FailedUpdates = append(result.FailedUpdates, map[string]any{
					"id":    id,
					"error": err.Error(),
				})
			}
			continue
		}

		// Trust the connection's own accounting over the batch size.
		reported := len(g.foreignIDs)
		if v, ok := response["success_count"].(float64); ok {
			reported = int(v)
		}
		result.SuccessCount += reported

		if failed, ok := response["failed_updates"].([]any); ok {
			for _, item := range failed {
				rec, ok := item.(map[string]any)
				if !ok {
					continue
				}
				remapped := make(map[string]any, len(rec))
				for k, v := range rec {
					remapped[k] = v
				}
				if fid, ok := rec["id"].(string); ok && fid != "" {
					remapped["id"] = ExternalID(index, fid)
				}
				result.FailedUpdates = append(result.FailedUpdates, remapped)
			}
		}
	}

	return result, nil
}

func (s *Service) header(conn registry.Connection, caller *access.Caller, s2 Settings) http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+conn.APIKey)
	if s2.ForwardIdentity {
		for k, v := range translate.IdentityHeaders(caller) {
			header[k] = v
		}
	}
	return header
}

func (s *Service) postJSON(ctx context.Context, conn registry.Connection, caller *access.Caller, s2 Settings, url string, body []byte) (map[string]any, error) {
	timeout := s2.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.client.Do(ctx, http.MethodPost, url, body, s.header(conn, caller, s2))
	if err != nil {
		return nil, &upstream.Error{URL: url, Message: upstream.FallbackMessage, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &upstream.Error{URL: url, Message: upstream.FallbackMessage, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &upstream.Error{
			URL:        url,
			StatusCode: resp.StatusCode,
			Message:    upstream.ExtractErrorDetail(raw, upstream.FallbackMessage),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = map[string]any{}
	}
	return decoded, nil
}
