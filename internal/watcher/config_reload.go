// config_reload.go implements debounced configuration hot reload.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/watcher/diff"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) stopReloadTimer() {
	w.reloadMu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.reloadMu.Unlock()
}

func (w *Watcher) scheduleReload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.reloadMu.Lock()
		w.reloadTimer = nil
		w.reloadMu.Unlock()
		w.reloadIfChanged()
	})
}

// fileHash returns the SHA-256 of path. A missing file hashes to "".
func fileHash(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// reloadIfChanged reloads when either file's content differs from the last
// applied version. It reports whether a new configuration was applied.
func (w *Watcher) reloadIfChanged() bool {
	configHash, errConfig := fileHash(w.configPath)
	if errConfig != nil {
		log.Errorf("failed to read config file for hash check: %v", errConfig)
		return false
	}
	envHash, errEnv := fileHash(w.envPath)
	if errEnv != nil {
		log.Errorf("failed to read env file for hash check: %v", errEnv)
		return false
	}

	w.stateMu.RLock()
	configChanged := configHash != w.lastConfigHash
	envChanged := envHash != w.lastEnvHash
	w.stateMu.RUnlock()
	if !configChanged && !envChanged {
		log.Debug("config content unchanged (hash match), skipping reload")
		return false
	}

	if envChanged && envHash != "" {
		if errLoad := godotenv.Overload(w.envPath); errLoad != nil {
			log.Errorf("failed to reload %s: %v", w.envPath, errLoad)
			return false
		}
	}
	if !w.reloadConfig() {
		return false
	}

	w.stateMu.Lock()
	w.lastConfigHash = configHash
	w.lastEnvHash = envHash
	w.stateMu.Unlock()
	return true
}

func (w *Watcher) reloadConfig() bool {
	log.Debugf("starting config reload from: %s", w.configPath)

	newConfig, errLoad := config.LoadConfigOptional(w.configPath, true)
	if errLoad != nil {
		log.Errorf("failed to reload config: %v", errLoad)
		return false
	}
	warnings, errValidate := newConfig.Validate()
	if errValidate != nil {
		log.Errorf("reloaded config rejected, keeping the running one: %v", errValidate)
		return false
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}

	w.stateMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.stateMu.Unlock()

	if oldConfig != nil {
		details := diff.BuildConfigChangeDetails(oldConfig, newConfig)
		if len(details) > 0 {
			log.Debugf("config changes detected:")
			for _, d := range details {
				log.Debugf("  %s", d)
			}
		} else {
			log.Debugf("no material config field changes detected")
		}
		if diff.RequiresRestart(oldConfig, newConfig) {
			log.Warn("some changed settings only take effect after a restart")
		}
	}

	log.Info("config successfully reloaded")
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}
