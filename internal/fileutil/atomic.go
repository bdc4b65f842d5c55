// Package fileutil holds the durable file primitives shared by the mount and
// refresh registries: whole-file atomic replacement, single-line append and
// an advisory directory lock.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// beforeRename runs after the temp file is fully written and synced but
// before it replaces the target. Tests use it to simulate a crash.
var beforeRename = func(tmpPath string) error { return nil }

// WriteFileAtomic replaces path with data. The data is written to a temp file
// in the same directory, synced, then renamed over path, so readers observe
// either the old contents or the new contents and never a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("[WriteFileAtomic] failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("[WriteFileAtomic] failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[WriteFileAtomic] failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[WriteFileAtomic] failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[WriteFileAtomic] failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("[WriteFileAtomic] failed to chmod temp file: %w", err)
	}

	if err := beforeRename(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("[WriteFileAtomic] failed to rename over %s: %w", path, err)
	}
	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("[syncDir] failed to open %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("[syncDir] failed to sync %s: %w", dir, err)
	}
	return nil
}
