package misc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// CopyConfigTemplate copies the example configuration at src to dst, creating
// dst's directory. An existing dst is overwritten.
func CopyConfigTemplate(src, dst string) error {
	in, errOpen := os.Open(src)
	if errOpen != nil {
		return fmt.Errorf("open config template: %w", errOpen)
	}
	defer func() {
		if errClose := in.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close config template")
		}
	}()
	return WriteFileAtomic(dst, in, 0o600)
}

// WriteFileAtomic writes r to a temporary file next to dst and renames it into
// place, so readers such as the config watcher never see a partial file.
func WriteFileAtomic(dst string, r io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(dst)
	if errMkdir := os.MkdirAll(dir, 0o700); errMkdir != nil {
		return fmt.Errorf("create directory %s: %w", dir, errMkdir)
	}
	tmp, errTemp := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if errTemp != nil {
		return fmt.Errorf("create temp file: %w", errTemp)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, errCopy := io.Copy(tmp, r); errCopy != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", dst, errCopy)
	}
	if errSync := tmp.Sync(); errSync != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", dst, errSync)
	}
	if errClose := tmp.Close(); errClose != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", dst, errClose)
	}
	if errChmod := os.Chmod(tmpName, perm); errChmod != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", dst, errChmod)
	}
	if errRename := os.Rename(tmpName, dst); errRename != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", dst, errRename)
	}
	return nil
}
