// Package docstore provides atomic JSON document persistence and field
// access with explicit absent semantics.
package docstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// WriteError wraps a failed atomic write. The prior file content is
// guaranteed untouched when a WriteError is returned.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store reads and writes JSON documents on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New creates a Store backed by the given filesystem.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// WriteAtomic marshals v as indented JSON and writes it via temp file +
// rename in the destination directory, so readers never observe a partial
// document. Fails with a WriteError leaving the prior file untouched.
func (s *Store) WriteAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := s.writeFileAtomic(path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// ReadJSON unmarshals the document at path into v. Returns found=false
// without error when the file does not exist.
func (s *Store) ReadJSON(path string, v any) (found bool, err error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if ok, _ := afero.Exists(s.fs, path); !ok {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs
// it, and renames it over path.
func (s *Store) writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		s.fs.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// GetField walks a dotted path ("git.tests.ok") through a decoded JSON
// document. found=false means the path is absent, which is distinct from a
// present null, false, or empty value.
func GetField(doc map[string]any, path string) (value any, found bool) {
	if path == "" {
		return nil, false
	}

	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
