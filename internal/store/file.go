package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File is a Store keeping one JSON file per key in a directory.
// Writes are atomic (tmp + rename) to prevent partial reads by a
// concurrent process watching the same directory.
type File struct {
	dir string
}

// NewFile creates a file-backed store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (f *File) Dir() string {
	return f.dir
}

// Path returns the file path backing a key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Save writes the value for a key atomically.
func (f *File) Save(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("store: value for %q is not valid JSON", key)
	}
	dst := f.Path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, value, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename to final: %w", err)
	}
	return nil
}

// Load reads the value for a key. Missing or corrupt files load as
// (nil, nil) — callers fall back to their default state.
func (f *File) Load(key string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read key %q: %w", key, err)
	}
	if !json.Valid(data) {
		return nil, nil
	}
	return data, nil
}
