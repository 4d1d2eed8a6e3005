// Package auth validates gateway API keys and resolves them to callers.
package auth

import (
	"fmt"
	"sync"

	"github.com/ISA-Forensic/GiSaWeb/pkg/access"
)

// KeyInfo is a configured gateway API key and the identity it maps to.
type KeyInfo struct {
	Key     string
	UserID  string
	Name    string
	Email   string
	Role    string
	Enabled bool
}

// Caller converts the key's identity into an access caller.
func (k *KeyInfo) Caller() *access.Caller {
	role := k.Role
	if role == "" {
		role = access.RoleUser
	}
	return &access.Caller{
		ID:    k.UserID,
		Name:  k.Name,
		Email: k.Email,
		Role:  role,
	}
}

// Validator validates API keys against a configured set of keys.
type Validator struct {
	mu   sync.RWMutex
	keys map[string]*KeyInfo
}

// NewValidator creates a validator with the given keys.
func NewValidator(keys []*KeyInfo) *Validator {
	keyMap := make(map[string]*KeyInfo, len(keys))
	for _, key := range keys {
		keyMap[key.Key] = key
	}
	return &Validator{keys: keyMap}
}

// Validate checks the given API key and returns its info.
func (v *Validator) Validate(key string) (*KeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[key]
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}
	if !info.Enabled {
		return nil, fmt.Errorf("API key disabled")
	}
	return info, nil
}

// Replace swaps the full key set, used when configuration is reloaded.
func (v *Validator) Replace(keys []*KeyInfo) {
	keyMap := make(map[string]*KeyInfo, len(keys))
	for _, key := range keys {
		keyMap[key.Key] = key
	}

	v.mu.Lock()
	v.keys = keyMap
	v.mu.Unlock()
}
