// Package gateway implements the OpenAI-compatible HTTP surface: model
// listing, chat completion dispatch, connection administration, knowledge
// base aggregation, speech synthesis caching, and the legacy passthrough
// proxy.
package gateway

import (
	"sync"
	"time"
)

// Settings are the runtime-adjustable gateway knobs. Administrators can
// change them through the config endpoints without a restart.
type Settings struct {
	// Enabled gates the whole OpenAI-compatible surface.
	Enabled bool

	// ForwardIdentity forwards caller identity headers upstream.
	ForwardIdentity bool

	// Bypass disables per-model access control globally.
	Bypass bool

	// RequestTimeout bounds buffered upstream requests.
	RequestTimeout time.Duration

	// ListTimeout bounds per-connection model list calls.
	ListTimeout time.Duration
}

// State holds the live settings behind a lock so components reading through
// closures always see the latest values.
type State struct {
	mu sync.RWMutex
	s  Settings
}

// NewState creates a state with initial settings.
func NewState(s Settings) *State {
	return &State{s: s}
}

// Snapshot returns a copy of the current settings.
func (st *State) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Update applies fn to the settings under the lock.
func (st *State) Update(fn func(*Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.s)
}
