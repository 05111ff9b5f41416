// Package filestore persists small state files. Rewrites are atomic and guarded by a
// cross-process lock file next to the target.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// File is one persisted state file.
type File struct {
	path string
	lock *flock.Flock
}

// New creates a File at path. The lock file is "<path>.lock".
func New(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Read returns the file contents. A missing file yields (nil, false, nil).
func (f *File) Read() ([]byte, bool, error) {
	if err := f.ensureDir(); err != nil {
		return nil, false, err
	}
	if err := f.lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer func() { _ = f.lock.Unlock() }()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, true, nil
}

// Write replaces the file contents atomically.
func (f *File) Write(data []byte) error {
	if err := f.ensureDir(); err != nil {
		return err
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	defer func() { _ = f.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", f.path, err)
	}
	tmpPath := tmp.Name()
	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

func (f *File) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.path, err)
	}
	return nil
}
