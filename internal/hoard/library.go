package hoard

// Library is the content store: the single directory holding one physical
// file per unique content hash.
type Library interface {
	// Place moves the file at srcPath into the content store under a stable,
	// collision-free name derived from name and hash, and returns the
	// absolute stored path. The move is atomic: on failure no partial file
	// remains in the store and the source is left intact.
	Place(srcPath, name, hash string) (string, error)

	// Discard deletes fetched bytes that turned out to be a duplicate.
	Discard(path string) error

	// Remove deletes a stored file. The path must be inside the store.
	Remove(path string) error

	// Root returns the absolute path of the content store directory.
	Root() string
}
