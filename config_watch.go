package reqkit

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ambiyansyah-risyal/reqkit/internal/log"
)

const reloadDebounce = 200 * time.Millisecond

// languageSetter is implemented by translators that can switch locale, such
// as *i18n.Catalog.
type languageSetter interface {
	SetLanguage(lang string) error
}

// ApplyConfig re-applies the settings that may change at runtime: the loading
// strategy and text and the locale. Everything else needs a new Client.
func (c *Client) ApplyConfig(cfg Config) error {
	c.loading.SetConfig(cfg.Loading.LoadingConfig())

	if cfg.Locale != "" {
		if setter, ok := c.translator.(languageSetter); ok {
			if err := setter.SetLanguage(cfg.Locale); err != nil {
				return fmt.Errorf("set language: %w", err)
			}
		}
	}
	return nil
}

// WatchConfig reloads path whenever it changes and applies it to the client.
// It blocks until ctx is done. A file that fails to load is logged and the
// previous settings stay in effect.
func (c *Client) WatchConfig(ctx context.Context, path string) error {
	return WatchConfig(ctx, path, c.ApplyConfig)
}

// WatchConfig calls apply with the freshly loaded config after each change to
// path, debounced. It blocks until ctx is done.
func WatchConfig(ctx context.Context, path string, apply func(Config) error) error {
	logger := log.WithComponent("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: atomic replaces swap the inode under a file watch.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}

	logger.Info().Str("path", target).Msg("watching config file for changes")

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug().Str("op", event.Op.String()).Msg("config file changed")
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			cfg, err := LoadConfig(target)
			if err != nil {
				logger.Error().Err(err).Msg("config reload failed")
				continue
			}
			if err := apply(cfg); err != nil {
				logger.Error().Err(err).Msg("config apply failed")
				continue
			}
			logger.Info().Str("loading", string(cfg.Loading.LoadingConfig().Strategy)).Str("locale", cfg.Locale).Msg("config reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("config watcher error")
		}
	}
}
