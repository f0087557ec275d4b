package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// FsyncDir syncs directory metadata to disk. This is required after rename
// operations so the new directory entry survives a crash.
func FsyncDir(dirPath string) error {
	if dirPath == "" {
		return fmt.Errorf("FsyncDir: directory path is empty")
	}

	dir, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("FsyncDir: failed to open directory %s: %w", dirPath, err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("FsyncDir: failed to sync directory %s: %w", dirPath, err)
	}

	return nil
}

// AtomicRename renames src over dst and syncs the parent directory.
// src and dst must be on the same filesystem for the rename to be atomic.
func AtomicRename(src, dst string) error {
	if src == "" || dst == "" {
		return fmt.Errorf("atomic rename: source or destination path is empty")
	}

	parentDir := filepath.Dir(dst)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("atomic rename %s -> %s: failed to create parent dir: %w", src, dst, err)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("atomic rename %s -> %s: %w", src, dst, err)
	}

	if err := FsyncDir(parentDir); err != nil {
		// Rename is already visible; surface the sync failure anyway.
		return fmt.Errorf("atomic rename %s -> %s: rename succeeded but parent sync failed: %w", src, dst, err)
	}

	return nil
}

// WriteFileSync writes data through a temp file in the destination directory,
// fsyncs it, and atomically renames it over path. Readers never observe a
// partial write; on failure the prior file is untouched.
func WriteFileSync(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return fmt.Errorf("write file sync: path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("write file sync %s: failed to create parent dir: %w", path, err)
	}

	// Temp file lives in the same directory to guarantee same-filesystem rename.
	tempFile := filepath.Join(dir, fmt.Sprintf(".tmp.%s.%d", filepath.Base(path), os.Getpid()))

	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("write file sync %s: failed to create temp file: %w", path, err)
	}
	defer func() {
		f.Close()
		os.Remove(tempFile)
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write file sync %s: failed to write data: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("write file sync %s: failed to sync file: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("write file sync %s: failed to close file: %w", path, err)
	}

	if err := AtomicRename(tempFile, path); err != nil {
		return fmt.Errorf("write file sync %s: %w", path, err)
	}

	return nil
}
