// Package speechcache is a content-addressed file cache for synthesized
// audio. Each distinct request body maps to one audio file plus a sidecar
// recording the body, keyed by the body's SHA-256 digest.
package speechcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Cache stores synthesized audio on disk.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// NewCache creates a cache rooted at dir, creating it if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create speech cache dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		logger: slog.Default().With("component", "speechcache"),
	}, nil
}

// Key derives the cache key for a request body.
func Key(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Get returns the path of the cached audio for key, if present.
func (c *Cache) Get(key string) (string, bool) {
	path := c.audioPath(key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Put stores audio under key together with the request body that produced
// it, and returns the audio path. Writes go through a temp file so a crash
// mid-write never leaves a truncated entry behind.
func (c *Cache) Put(key string, body, audio []byte) (string, error) {
	path := c.audioPath(key)

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to stage speech cache entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write speech cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write speech cache entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to commit speech cache entry: %w", err)
	}

	// The sidecar is diagnostic only; failure to write it is not fatal.
	if err := os.WriteFile(c.bodyPath(key), body, 0o644); err != nil {
		c.logger.Warn("failed to write speech cache sidecar", "key", key, "error", err)
	}

	return path, nil
}

func (c *Cache) audioPath(key string) string {
	return filepath.Join(c.dir, key+".mp3")
}

func (c *Cache) bodyPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
