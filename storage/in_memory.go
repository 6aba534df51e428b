// Package storage contains ComponentStore implementations for generated book
// material (outlines, chapters, cover images) addressed by logical key.
package storage

import (
	"fmt"
	"sync"

	"github.com/inkmesh/inkmesh/core"
)

// ErrNotFound is returned when a component for the given book / key pair does
// not exist in the underlying store.
var ErrNotFound = fmt.Errorf("component not found")

// InMemoryStore is a trivial in-process ComponentStore useful for tests,
// examples and single-process prototypes. It keeps all components in a nested
// map guarded by an RWMutex. Data is copied on save / retrieval to avoid
// accidental external mutation of internal buffers.
//
// Layout: bookID -> component key -> raw bytes
//
// This implementation does not enforce retention limits, size quotas, or
// eviction, and nothing survives a process restart. For durability use the
// file-backed store in storage/fs or a custom implementation.
type InMemoryStore struct {
	mu         sync.RWMutex
	components map[string]map[string][]byte
}

var _ core.ComponentStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory component store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{components: make(map[string]map[string][]byte)}
}

// Save stores (or overwrites) the component bytes for the given book and key.
// The input slice is copied before storage.
func (s *InMemoryStore) Save(bookID, component string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.components[bookID]; !exists {
		s.components[bookID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.components[bookID][component] = cp
	return nil
}

// Load returns a copy of the stored component bytes or ErrNotFound.
func (s *InMemoryStore) Load(bookID, component string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.components[bookID]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[component]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the component keys stored for the book. The slice is a
// snapshot and safe for caller mutation.
func (s *InMemoryStore) List(bookID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.components[bookID]
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys, nil
}

// Delete removes the component if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(bookID, component string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.components[bookID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[component]; !ok {
		return ErrNotFound
	}
	delete(m, component)
	return nil
}
