// Package registry holds the ordered list of upstream connections and their
// per-connection configuration. Every other component refers to a connection
// only by its ordinal index; the registry is the single owner of base URLs,
// API keys, and connection settings.
package registry

import (
	"strconv"
	"sync"
)

// ConnectionTypeExternal is the default connection type stamped onto catalog
// entries when a connection does not declare one.
const ConnectionTypeExternal = "external"

// ConnectionConfig is the per-connection configuration. The key set is
// closed; unknown keys in config files or admin updates are ignored.
type ConnectionConfig struct {
	// Enabled toggles the connection. Disabled connections contribute
	// nothing to aggregation and are never contacted.
	Enabled *bool `json:"enable,omitempty" yaml:"enable,omitempty"`

	// ModelIDs is an explicit allow-list of model ids. When non-empty the
	// catalog is synthesized locally and no list call is made upstream.
	ModelIDs []string `json:"model_ids,omitempty" yaml:"model_ids,omitempty"`

	// PrefixID namespaces this connection's model ids as
	// "{prefix_id}.{upstream_id}" at merge time.
	PrefixID string `json:"prefix_id,omitempty" yaml:"prefix_id,omitempty"`

	// Tags are stamped onto every catalog entry from this connection.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// ConnectionType annotates catalog entries; defaults to "external".
	ConnectionType string `json:"connection_type,omitempty" yaml:"connection_type,omitempty"`

	// Azure selects the managed-deployment dialect for this connection.
	Azure bool `json:"azure,omitempty" yaml:"azure,omitempty"`

	// APIVersion is the managed-deployment api-version query parameter.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
}

// IsEnabled reports the effective enable flag; connections default to enabled.
func (c ConnectionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TypeOrDefault returns ConnectionType, defaulting to "external".
func (c ConnectionConfig) TypeOrDefault() string {
	if c.ConnectionType == "" {
		return ConnectionTypeExternal
	}
	return c.ConnectionType
}

// Connection is one configured upstream backend.
type Connection struct {
	Index   int
	BaseURL string
	APIKey  string
	Config  ConnectionConfig
}

// Registry owns the connection lists. URLs and keys are parallel slices;
// after every mutation the key list is reconciled to the URL list's length
// by truncating excess keys or padding with empty strings. Reconciliation
// never fails and never raises.
//
// Configs are keyed by the stringified connection index, with a legacy
// fallback key of the raw base URL. Both key forms are supported
// indefinitely.
type Registry struct {
	mu      sync.RWMutex
	urls    []string
	keys    []string
	configs map[string]ConnectionConfig
}

// New creates a registry from parallel URL/key lists and a config map.
// The key list is reconciled immediately.
func New(urls, keys []string, configs map[string]ConnectionConfig) *Registry {
	r := &Registry{
		urls:    append([]string(nil), urls...),
		keys:    append([]string(nil), keys...),
		configs: make(map[string]ConnectionConfig, len(configs)),
	}
	for k, v := range configs {
		r.configs[k] = v
	}
	r.reconcileLocked()
	return r
}

// reconcileLocked enforces len(keys) == len(urls). Callers must hold mu.
func (r *Registry) reconcileLocked() {
	if len(r.keys) > len(r.urls) {
		r.keys = r.keys[:len(r.urls)]
	}
	for len(r.keys) < len(r.urls) {
		r.keys = append(r.keys, "")
	}
}

// Len returns the number of configured connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.urls)
}

// Get returns the connection at index. The second return value is false
// when the index is out of range; externally supplied indices must be
// guarded by callers.
func (r *Registry) Get(index int) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.urls) {
		return Connection{}, false
	}
	return r.connectionLocked(index), true
}

// Connections returns a snapshot of all connections in index order.
func (r *Registry) Connections() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, len(r.urls))
	for i := range r.urls {
		conns[i] = r.connectionLocked(i)
	}
	return conns
}

func (r *Registry) connectionLocked(index int) Connection {
	return Connection{
		Index:   index,
		BaseURL: r.urls[index],
		APIKey:  r.keys[index],
		Config:  r.resolveConfigLocked(index, r.urls[index]),
	}
}

// ResolveConfig looks up the configuration for a connection: by stringified
// index first, then by raw base URL (legacy key), then the zero config.
func (r *Registry) ResolveConfig(index int, baseURL string) ConnectionConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveConfigLocked(index, baseURL)
}

func (r *Registry) resolveConfigLocked(index int, baseURL string) ConnectionConfig {
	if cfg, ok := r.configs[strconv.Itoa(index)]; ok {
		return cfg
	}
	if cfg, ok := r.configs[baseURL]; ok {
		return cfg
	}
	return ConnectionConfig{}
}

// SetURLs replaces the base URL list and reconciles the key list.
func (r *Registry) SetURLs(urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.urls = append([]string(nil), urls...)
	r.reconcileLocked()
}

// SetKeys replaces the API key list and reconciles it against the URL list.
func (r *Registry) SetKeys(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys = append([]string(nil), keys...)
	r.reconcileLocked()
}

// SetConfigs replaces the config map, dropping entries whose index key is
// outside the current URL list. Legacy URL-keyed entries are kept as-is.
func (r *Registry) SetConfigs(configs map[string]ConnectionConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs = make(map[string]ConnectionConfig, len(configs))
	for k, v := range configs {
		if idx, err := strconv.Atoi(k); err == nil && (idx < 0 || idx >= len(r.urls)) {
			continue
		}
		r.configs[k] = v
	}
}

// URLs returns a copy of the base URL list.
func (r *Registry) URLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.urls...)
}

// Keys returns a copy of the API key list.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}

// Configs returns a copy of the config map.
func (r *Registry) Configs() map[string]ConnectionConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ConnectionConfig, len(r.configs))
	for k, v := range r.configs {
		out[k] = v
	}
	return out
}
