package speechcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls periodic sweeping of old cache entries.
type RetentionConfig struct {
	// Schedule is a standard cron expression. Empty disables sweeping.
	Schedule string

	// MaxAge removes entries older than this. Zero keeps entries forever.
	MaxAge time.Duration
}

// Sweeper removes expired cache entries on a schedule.
type Sweeper struct {
	cache  *Cache
	config RetentionConfig
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewSweeper creates a sweeper for cache.
func NewSweeper(cache *Cache, config RetentionConfig) *Sweeper {
	return &Sweeper{
		cache:  cache,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "speechcache.sweeper"),
	}
}

// Start begins scheduled sweeping. A sweeper with no schedule or no max age
// does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" || s.config.MaxAge <= 0 {
		s.logger.Info("speech cache sweep not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep()
	}); err != nil {
		return fmt.Errorf("failed to schedule speech cache sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("speech cache sweeper started",
		"schedule", s.config.Schedule,
		"max_age", s.config.MaxAge,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep removes every entry whose audio file is past its max age,
// together with its sidecar.
func (s *Sweeper) runSweep() {
	removed, err := s.Sweep()
	if err != nil {
		s.logger.Error("speech cache sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("speech cache sweep completed", "removed", removed)
	} else {
		s.logger.Debug("speech cache sweep completed, nothing removed")
	}
}

// Sweep performs one sweep cycle and returns the number of entries removed.
func (s *Sweeper) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.config.MaxAge)

	entries, err := os.ReadDir(s.cache.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read speech cache dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".mp3" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		key := entry.Name()[:len(entry.Name())-len(".mp3")]
		if err := os.Remove(s.cache.audioPath(key)); err != nil {
			s.logger.Warn("failed to remove cache entry", "key", key, "error", err)
			continue
		}
		os.Remove(s.cache.bodyPath(key))
		removed++
	}

	return removed, nil
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("speech cache sweeper stopped")
	}
}
