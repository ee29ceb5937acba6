package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"hoard/internal/hoard"
)

// OSFilesystemManager implements hoard.FilesystemManager against the real
// filesystem.
type OSFilesystemManager struct{}

var _ hoard.FilesystemManager = (*OSFilesystemManager)(nil)

// NewOSFilesystemManager creates a filesystem manager backed by the os package.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve makes rawPath absolute, stats it, and rejects special files.
// Symlinks are rejected as ingest input: the organization root is itself built
// from symlinks, and ingesting one would risk a self-referencing tree.
func (m *OSFilesystemManager) Resolve(rawPath string) (*hoard.Path, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("refusing symlink: %s", abs)
	case info.Mode()&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
		return nil, fmt.Errorf("refusing special file: %s", abs)
	}

	return hoard.NewPath(abs, info.IsDir(), info), nil
}

// Open opens a resolved file for reading.
func (m *OSFilesystemManager) Open(path *hoard.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *hoard.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// FindFiles lists the regular files under a directory, either one level deep
// or through the whole subtree.
func (m *OSFilesystemManager) FindFiles(path *hoard.Path, recursive bool) ([]*hoard.Path, error) {
	if !path.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", path.String())
	}
	if recursive {
		return m.findRecursive(path.String())
	}
	return m.findFlat(path.String())
}

func (m *OSFilesystemManager) findRecursive(root string) ([]*hoard.Path, error) {
	var paths []*hoard.Path
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		paths = append(paths, hoard.NewPath(p, false, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}
	return paths, nil
}

func (m *OSFilesystemManager) findFlat(dir string) ([]*hoard.Path, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*hoard.Path
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		paths = append(paths, hoard.NewPath(filepath.Join(dir, entry.Name()), false, info))
	}
	return paths, nil
}
