package hoard

import (
	"io"
	"io/fs"
)

// FilesystemManager abstracts access to incoming files (the bytes a fetcher
// already placed on disk) so ingestion logic can be tested without touching
// the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path, bypassing the cached info
	// from when the path was resolved.
	Stat(path *Path) (fs.FileInfo, error)

	// FindFiles discovers regular files under the given directory path,
	// for batch ingestion.
	FindFiles(path *Path, recursive bool) ([]*Path, error)
}
