// Package fs provides a file-backed ComponentStore. Each book gets a
// directory under the root; each component is one file named after its key.
// Component keys are sanitized so a logical key like "cover image" maps to a
// safe filename.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkmesh/inkmesh/core"
	"github.com/inkmesh/inkmesh/storage"
)

// Store persists components as flat files under a root directory.
//
// Layout: <root>/<bookID>/<component>
//
// The store is safe for concurrent use by the usual one-writer-per-book
// agent pattern; it relies on the filesystem for atomicity of whole-file
// writes and does not version components.
type Store struct {
	root string
}

var _ core.ComponentStore = (*Store)(nil)

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Save writes the component bytes, creating the book directory on demand.
func (s *Store) Save(bookID, component string, data []byte) error {
	dir := filepath.Join(s.root, sanitize(bookID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}
	path := filepath.Join(dir, sanitize(component))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write component %s: %w", component, err)
	}
	return nil
}

// Load reads the component bytes or returns storage.ErrNotFound.
func (s *Store) Load(bookID, component string) ([]byte, error) {
	path := filepath.Join(s.root, sanitize(bookID), sanitize(component))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read component %s: %w", component, err)
	}
	return data, nil
}

// List returns the component keys stored for the book.
func (s *Store) List(bookID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sanitize(bookID)))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

// Delete removes the component file or returns storage.ErrNotFound.
func (s *Store) Delete(bookID, component string) error {
	path := filepath.Join(s.root, sanitize(bookID), sanitize(component))
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return storage.ErrNotFound
	}
	return err
}

// sanitize maps a logical key onto a safe flat filename.
func sanitize(key string) string {
	r := strings.NewReplacer(" ", "_", string(filepath.Separator), "_", "..", "_")
	return r.Replace(key)
}
