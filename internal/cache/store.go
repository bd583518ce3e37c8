package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists one flat key-to-string mapping as a JSON document at a fixed
// path.
//
// The document is rewritten in full on every save and loaded once at process
// start.
type Store struct {
	path string
}

// NewStore creates a store bound to one file path.
func NewStore(path string) (*Store, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, fmt.Errorf("new cache store: empty path")
	}

	return &Store{path: trimmedPath}, nil
}

// Path returns the bound file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted mapping.
//
// A missing file yields an empty mapping; a present but unparseable file is
// an error so the caller can decide to start empty.
func (s *Store) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("load cache store %s: %w", s.path, err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache store %s: %w", s.path, err)
	}

	return entries, nil
}

// Save rewrites the persisted mapping in full.
func (s *Store) Save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache store %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache store directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write cache store %s: %w", s.path, err)
	}

	return nil
}

// Delete removes the persisted document. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete cache store %s: %w", s.path, err)
	}

	return nil
}
