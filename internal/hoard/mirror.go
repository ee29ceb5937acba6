package hoard

import "io"

// Mirror provides an interface for off-site copies of the content store.
// Content is keyed by hash, so mirroring is idempotent and deduplicated by
// construction. All operations stream through io.Reader/io.Writer to support
// large media files without loading them into memory.
type Mirror interface {
	// PutContent stores content identified by its hash.
	// Idempotent: storing the same hash multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutContent(hash string, r io.Reader, size int64) error

	// GetContent retrieves content by hash and writes it to w.
	GetContent(hash string, w io.Writer) error

	// HasContent reports whether content with the given hash is mirrored.
	HasContent(hash string) (bool, error)

	// PutCatalog stores a snapshot of the metadata database for an
	// installation, with a version marker for staleness checks.
	PutCatalog(installID string, r io.Reader, size int64, version int64) error

	// GetCatalog retrieves the catalog snapshot for an installation.
	GetCatalog(installID string, w io.Writer) error

	// CatalogVersion returns the stored catalog version for an installation,
	// or 0 if none has been pushed.
	CatalogVersion(installID string) (int64, error)

	// ValidateSetup verifies the mirror is accessible and properly configured.
	ValidateSetup() error
}
