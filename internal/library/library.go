package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"hoard/internal/hoard"
)

// FilesystemLibrary is the content store: a single flat directory
// (<root>/downloads) holding one physical file per unique content hash.
type FilesystemLibrary struct {
	dir string
}

// New creates a library under the organization root, creating the downloads
// directory if needed.
func New(root string) (*FilesystemLibrary, error) {
	dir := filepath.Join(root, "downloads")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating content store: %w", err)
	}
	return &FilesystemLibrary{dir: dir}, nil
}

// Root returns the absolute content store directory.
func (l *FilesystemLibrary) Root() string {
	return l.dir
}

// Place moves the file at srcPath into the store and returns the stored path.
// The display name is used when free; a name already taken by a different
// file falls back to the hash-suffixed form, which is deterministically this
// content's slot. The move is atomic: a same-device rename, or a temp-file
// copy plus rename across devices, so a failure leaves no partial file.
func (l *FilesystemLibrary) Place(srcPath, name, hash string) (string, error) {
	name = hoard.SanitizeName(name)
	dest := filepath.Join(l.dir, name)

	if occupied, err := exists(dest); err != nil {
		return "", err
	} else if occupied {
		// The suffixed slot is derived from the content hash; an occupant
		// there can only be leftover identical bytes from an interrupted
		// ingestion, so overwriting it is safe.
		dest = filepath.Join(l.dir, hoard.SuffixedName(name, hash))
	}

	if err := os.Rename(srcPath, dest); err == nil {
		return dest, nil
	} else if !isCrossDevice(err) {
		return "", fmt.Errorf("moving into content store: %w", err)
	}

	if err := l.copyThenRename(srcPath, dest); err != nil {
		return "", err
	}
	if err := os.Remove(srcPath); err != nil {
		// The store copy is complete; a lingering source is harmless.
		return dest, nil
	}
	return dest, nil
}

// Discard deletes fetched bytes that turned out to be a duplicate.
func (l *FilesystemLibrary) Discard(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding duplicate bytes: %w", err)
	}
	return nil
}

// Remove deletes a stored file. Paths outside the store are rejected.
func (l *FilesystemLibrary) Remove(path string) error {
	rel, err := filepath.Rel(l.dir, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path is outside the content store: %s", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stored file: %w", err)
	}
	return nil
}

// copyThenRename copies srcPath to a temp file in the store directory and
// renames it into place, so a partial copy never appears under the final name.
func (l *FilesystemLibrary) copyThenRename(srcPath, dest string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(l.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("copying into content store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}

func exists(path string) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// isCrossDevice reports whether a rename failed because source and
// destination are on different filesystems.
func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// Compile-time check that FilesystemLibrary implements hoard.Library
var _ hoard.Library = (*FilesystemLibrary)(nil)
