// Package watcher watches the YAML config file and the .env file and applies
// edits to the running server without a restart.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/git-captain/git-captain/internal/config"
	log "github.com/sirupsen/logrus"
)

const (
	configReloadDebounce = 150 * time.Millisecond
)

// Watcher reloads the configuration when config.yaml or .env changes.
type Watcher struct {
	configPath string
	envPath    string

	stateMu        sync.RWMutex
	config         *config.Config
	lastConfigHash string
	lastEnvHash    string

	reloadMu       sync.Mutex
	reloadTimer    *time.Timer
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher
}

// NewWatcher creates a watcher for configPath and envPath. Either path may be
// empty. reloadCallback receives every configuration that loaded and validated.
func NewWatcher(configPath, envPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	w := &Watcher{
		configPath:     cleanPath(configPath),
		envPath:        cleanPath(envPath),
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}
	w.lastConfigHash, _ = fileHash(w.configPath)
	w.lastEnvHash, _ = fileHash(w.envPath)
	return w, nil
}

// Start begins watching. Directories are watched rather than the files so
// editors that save by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	added := make(map[string]bool)
	for _, path := range []string{w.configPath, w.envPath} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if added[dir] {
			continue
		}
		if errAdd := w.watcher.Add(dir); errAdd != nil {
			log.Errorf("failed to watch %s: %v", dir, errAdd)
			return errAdd
		}
		added[dir] = true
		log.Debugf("watching directory: %s", dir)
	}
	go w.processEvents(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopReloadTimer()
	return w.watcher.Close()
}

// SetConfig records the configuration currently in use, the baseline for change logging.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.config = cfg
}

// Config returns the most recently applied configuration.
func (w *Watcher) Config() *config.Config {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.config
}

func cleanPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		return abs
	}
	return filepath.Clean(path)
}
