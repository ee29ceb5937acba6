package mirror

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"hoard/internal/hoard"
)

// MemoryMirror is an in-memory implementation of the Mirror interface.
// It stores all content and catalogs in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryMirror struct {
	name           string
	content        map[string][]byte // hash -> content
	catalog        map[string][]byte // installID -> catalog snapshot
	catalogVersion map[string]int64  // installID -> version
	mu             sync.RWMutex
}

// NewMemoryMirror creates a new in-memory mirror with the given name.
func NewMemoryMirror(name string) *MemoryMirror {
	return &MemoryMirror{
		name:           name,
		content:        make(map[string][]byte),
		catalog:        make(map[string][]byte),
		catalogVersion: make(map[string]int64),
	}
}

// PutContent stores content identified by its hash.
func (m *MemoryMirror) PutContent(hash string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same hash multiple times is safe
	m.content[hash] = data
	return nil
}

// GetContent retrieves content by hash.
func (m *MemoryMirror) GetContent(hash string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[hash]
	if !ok {
		return fmt.Errorf("content not found: %s", hash)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// HasContent reports whether content with the given hash is mirrored.
func (m *MemoryMirror) HasContent(hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[hash]
	return ok, nil
}

// PutCatalog stores a catalog snapshot for an installation with a version marker.
func (m *MemoryMirror) PutCatalog(installID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.catalog[installID] = data
	m.catalogVersion[installID] = version
	return nil
}

// GetCatalog retrieves the catalog snapshot for an installation.
func (m *MemoryMirror) GetCatalog(installID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.catalog[installID]
	if !ok {
		return fmt.Errorf("catalog not found for installation: %s", installID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	return nil
}

// CatalogVersion returns the catalog version for an installation.
// Returns 0 if no catalog has been stored for this installation.
func (m *MemoryMirror) CatalogVersion(installID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.catalogVersion[installID], nil
}

// ValidateSetup always succeeds for in-memory mirror.
func (m *MemoryMirror) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryMirror implements hoard.Mirror interface
var _ hoard.Mirror = (*MemoryMirror)(nil)
