package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hoard/internal/hoard"
)

// FileSystemMirror is a filesystem-based implementation of the Mirror
// interface, for mirrors on mounted external or network drives. It stores
// content and catalogs as files in a directory structure:
//
//	<root>/
//	  content/
//	    <hash>              (content files, named by SHA-256)
//	  catalog/
//	    <installID>.db      (per-installation catalog snapshots)
//	    <installID>.version
type FileSystemMirror struct {
	name       string
	root       string
	contentDir string
	catalogDir string
}

// NewFileSystemMirror creates a new filesystem mirror rooted at the given path.
func NewFileSystemMirror(name, root string) (*FileSystemMirror, error) {
	contentDir := filepath.Join(root, "content")
	catalogDir := filepath.Join(root, "catalog")

	// Create directory structure
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(catalogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	return &FileSystemMirror{
		name:       name,
		root:       root,
		contentDir: contentDir,
		catalogDir: catalogDir,
	}, nil
}

// PutContent stores content identified by its hash.
// The operation is idempotent: storing the same hash multiple times is safe.
func (m *FileSystemMirror) PutContent(hash string, r io.Reader, size int64) error {
	destPath := filepath.Join(m.contentDir, hash)

	// If content already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return m.writeFile(destPath, r, size)
}

// GetContent retrieves content by hash and writes it to w.
func (m *FileSystemMirror) GetContent(hash string, w io.Writer) error {
	srcPath := filepath.Join(m.contentDir, hash)
	return m.readFile(srcPath, w, fmt.Sprintf("content not found: %s", hash))
}

// HasContent reports whether content with the given hash is mirrored.
func (m *FileSystemMirror) HasContent(hash string) (bool, error) {
	if _, err := os.Stat(filepath.Join(m.contentDir, hash)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat content: %w", err)
	}
	return true, nil
}

// PutCatalog stores a catalog snapshot for an installation with a version marker.
func (m *FileSystemMirror) PutCatalog(installID string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(m.catalogDir, installID+".db")
	if err := m.writeFile(destPath, r, size); err != nil {
		return err
	}

	// Write version file
	versionPath := filepath.Join(m.catalogDir, installID+".version")
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

// GetCatalog retrieves the catalog snapshot for an installation and writes it to w.
func (m *FileSystemMirror) GetCatalog(installID string, w io.Writer) error {
	srcPath := filepath.Join(m.catalogDir, installID+".db")
	return m.readFile(srcPath, w, fmt.Sprintf("catalog not found for installation: %s", installID))
}

// CatalogVersion returns the catalog version for an installation.
// Returns 0 if no version file exists.
func (m *FileSystemMirror) CatalogVersion(installID string) (int64, error) {
	versionPath := filepath.Join(m.catalogDir, installID+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the mirror directories are accessible.
func (m *FileSystemMirror) ValidateSetup() error {
	// Check that root directory exists and is a directory
	info, err := os.Stat(m.root)
	if err != nil {
		return fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror root is not a directory: %s", m.root)
	}

	// Check that subdirectories exist and are writable
	for _, dir := range []string{m.contentDir, m.catalogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("mirror directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("mirror path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (m *FileSystemMirror) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	// Copy data to temp file
	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Verify size
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (m *FileSystemMirror) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemMirror implements hoard.Mirror interface
var _ hoard.Mirror = (*FileSystemMirror)(nil)
