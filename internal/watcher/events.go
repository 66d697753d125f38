// events.go filters fsnotify events down to the two watched files.
package watcher

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	ops := fsnotify.Write | fsnotify.Create | fsnotify.Rename
	if event.Op&ops == 0 {
		return
	}
	name := normalizePath(event.Name)
	if name != normalizePath(w.configPath) && name != normalizePath(w.envPath) {
		return
	}
	log.Debugf("file system event detected: %s %s", event.Op.String(), filepath.Base(event.Name))
	w.scheduleReload()
}

func normalizePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return ""
	}
	cleaned := filepath.Clean(trimmed)
	if runtime.GOOS == "windows" {
		cleaned = strings.TrimPrefix(cleaned, `\\?\`)
		cleaned = strings.ToLower(cleaned)
	}
	return cleaned
}
