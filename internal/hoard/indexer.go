package hoard

import "sort"

// Indexer maintains the derived symlink trees (by-source, by-tag, by-date)
// over the content store. Link state is always rebuilt from StoredFile
// records; the trees are never treated as a source of truth.
type Indexer interface {
	// Place ensures one link per enabled view exists for the file and returns
	// the full link set. Idempotent: a second call for an unchanged file
	// produces the identical set with no filesystem changes. A partial
	// failure is reported as a *PlacementError; links that did succeed are
	// still returned.
	Place(file *StoredFile) ([]string, error)

	// Retarget reconciles the by-tag links against the file's current tag
	// set: links for dropped tags are removed, links for new tags are
	// created. By-source and by-date links are left untouched.
	Retarget(file *StoredFile) error

	// Remove deletes every link across all three trees that resolves to the
	// file's stored path. The physical file is not touched.
	Remove(file *StoredFile) error

	// PruneBroken walks the three trees and removes dangling symlinks,
	// returning the paths removed.
	PruneBroken() ([]string, error)

	// Stats returns per-bucket link counts for each view.
	Stats() (*IndexStats, error)
}

// IndexStats holds per-bucket symlink counts for each organization view.
type IndexStats struct {
	BySource map[string]int
	ByTag    map[string]int
	ByDate   map[string]int
}

// SortedBucketNames returns the bucket names in sorted order, for stable
// display.
func SortedBucketNames(buckets map[string]int) []string {
	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
