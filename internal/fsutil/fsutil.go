// Package fsutil provides small filesystem helpers for product output
// handling.
//
// Product assembly writes its artifact in a single non-transactional pass; a
// crash mid-write leaves a partial artifact. Callers that need integrity use
// the atomic helpers here to stage the write in a sibling temp location and
// rename into place on success.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exists reports whether a file or directory exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteFileAtomic writes data to a temporary file in the target's directory
// and renames it over path. The rename is atomic on POSIX filesystems when
// source and destination share a volume.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// StageDir returns a temporary sibling directory for path, for staging a
// multi-file artifact before CommitDir renames it into place.
func StageDir(path string) (string, error) {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("failed to create parent directory %s: %w", parent, err)
	}
	staged, err := os.MkdirTemp(parent, "."+filepath.Base(path)+".stage*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory in %s: %w", parent, err)
	}
	return staged, nil
}

// CommitDir renames a staged directory over path, removing any previous
// artifact at path first.
func CommitDir(staged, path string) error {
	if Exists(path) {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove previous artifact %s: %w", path, err)
		}
	}
	if err := os.Rename(staged, path); err != nil {
		return fmt.Errorf("failed to commit staged artifact to %s: %w", path, err)
	}
	return nil
}
