package hoard

import "io/fs"

// Path is a filesystem path that has already been checked: it is absolute,
// it existed at resolution time, and its stat result is carried along so
// callers do not stat again. Obtain one through FilesystemManager.Resolve.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath wraps an already-resolved absolute path. Intended for
// FilesystemManager implementations; other code should go through Resolve.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

// String returns the absolute path.
func (p *Path) String() string {
	return p.absPath
}

// IsDir reports whether the path named a directory when it was resolved.
func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the stat result captured at resolution time.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
