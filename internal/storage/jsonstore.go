// Package storage provides the JSON file persistence used by the trading
// services. State is kept authoritative in memory and mirrored to disk with
// full-file rewrites, matching the single-process desktop deployment model.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotExist is returned by Load when the backing file has not been
// written yet. Callers treat this as "start empty", not as a failure.
var ErrNotExist = errors.New("storage: file does not exist")

// Store reads and writes pretty-printed JSON documents under a data
// directory. One document per file; every save rewrites the whole file.
type Store struct {
	dataDir string
}

// NewStore creates a store rooted at dataDir, creating the directory if
// needed.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the root directory of the store.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Save serializes v as indented JSON to the given relative path. The write
// goes through a temp file and rename so a crash mid-write cannot leave a
// truncated document behind.
func (s *Store) Save(relPath string, v interface{}) error {
	path := filepath.Join(s.dataDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", relPath, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", relPath, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", relPath, err)
	}
	return nil
}

// Load reads the JSON document at the given relative path into out.
// Returns ErrNotExist when the file is missing; any other error means the
// file exists but could not be read or parsed.
func (s *Store) Load(relPath string, out interface{}) error {
	path := filepath.Join(s.dataDir, relPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExist
		}
		return fmt.Errorf("read %s: %w", relPath, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", relPath, err)
	}
	return nil
}
