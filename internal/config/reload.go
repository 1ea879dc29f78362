package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/alxcrm/crm/internal/log"
	"github.com/fsnotify/fsnotify"
)

// Holder keeps the current configuration and supports hot reload of the
// reloadable subset (log level, rate limit, cache TTL). Structural settings
// (listeners, stores, broker) require a restart and are kept from the
// original snapshot on reload.
type Holder struct {
	mu       sync.RWMutex
	current  AppConfig
	filePath string
	version  string
	onReload []func(AppConfig)
}

// NewHolder creates a Holder around an already loaded configuration.
func NewHolder(cfg AppConfig, filePath, version string) *Holder {
	return &Holder{current: cfg, filePath: filePath, version: version}
}

// Current returns the active configuration.
func (h *Holder) Current() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers a callback invoked with the new configuration after a
// successful reload.
func (h *Holder) OnReload(fn func(AppConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReload = append(h.onReload, fn)
}

// Reload re-resolves the configuration and applies the reloadable subset.
func (h *Holder) Reload() error {
	logger := log.WithComponent("config")

	fresh, err := Load(h.filePath, h.version)
	if err != nil {
		logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping previous configuration")
		return fmt.Errorf("reload: %w", err)
	}

	h.mu.Lock()
	next := h.current
	next.LogLevel = fresh.LogLevel
	next.RateLimitRPM = fresh.RateLimitRPM
	next.CacheTTL = fresh.CacheTTL
	h.current = next
	callbacks := append([]func(AppConfig){}, h.onReload...)
	h.mu.Unlock()

	log.SetLevel(next.LogLevel)
	for _, fn := range callbacks {
		fn(next)
	}

	logger.Info().
		Str("event", "config.reloaded").
		Str("log_level", next.LogLevel).
		Int("rate_limit_rpm", next.RateLimitRPM).
		Dur("cache_ttl", next.CacheTTL).
		Msg("configuration reloaded")
	return nil
}

// Watch reloads the configuration whenever its file changes. It returns
// immediately when no file path is configured and blocks until ctx is done
// otherwise.
func (h *Holder) Watch(ctx context.Context) error {
	if h.filePath == "" {
		return nil
	}
	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors and renameio-style writers replace the
	// file instead of writing in place.
	if err := watcher.Add(filepath.Dir(h.filePath)); err != nil {
		return fmt.Errorf("watch %s: %w", h.filePath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.filePath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug().
				Str("event", "config.file_changed").
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("config file changed")
			_ = h.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Str("event", "config.watch_error").Msg("config watcher error")
		}
	}
}
