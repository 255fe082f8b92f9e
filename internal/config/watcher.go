package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// reloadDelay coalesces the burst of events editors emit for a single save.
const reloadDelay = 100 * time.Millisecond

// Watcher monitors configuration file changes. It watches the parent
// directory so that editors replacing the file by rename are still seen.
type Watcher struct {
	configPath string
	onChange   func(*Config) error
	watcher    *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	done    chan struct{}
}

// NewWatcher creates a new configuration file watcher
func NewWatcher(configPath string, onChange func(*Config) error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		configPath: filepath.Clean(configPath),
		onChange:   onChange,
		watcher:    watcher,
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching the configuration file
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	go w.watch()

	log.Info().Str("path", w.configPath).Msg("config watcher started")
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("config watcher stopped")
	return nil
}

func (w *Watcher) watch() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("config file event")
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDelay, w.reload)
}

// reload loads and applies the new configuration
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload config, keeping old config")
		return
	}

	if err := w.onChange(cfg); err != nil {
		log.Error().Err(err).Msg("failed to apply new config, keeping old config")
		return
	}

	log.Info().Msg("config reloaded successfully")
}
