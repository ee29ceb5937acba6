package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hoard/internal/hoard"
)

// Builder is the filesystem implementation of hoard.Indexer. It maintains
// three derived trees under the organization root:
//
//	<root>/
//	  by-source/<platform>/<name>  (symlink)
//	  by-tag/<tag>/<name>          (symlink per associated tag)
//	  by-date/<YYYY-MM>/<name>     (symlink)
//
// Every link is relative, so the whole tree stays valid when the root is
// moved or copied. Bucket directories are created lazily on first use.
type Builder struct {
	root     string
	bySource bool
	byTag    bool
	byDate   bool
}

// Options selects which organization views the builder maintains.
type Options struct {
	BySource bool
	ByTag    bool
	ByDate   bool
}

// New creates a Builder over the given organization root.
func New(root string, opts Options) *Builder {
	return &Builder{
		root:     root,
		bySource: opts.BySource,
		byTag:    opts.ByTag,
		byDate:   opts.ByDate,
	}
}

func (b *Builder) sourceRoot() string { return filepath.Join(b.root, "by-source") }
func (b *Builder) tagRoot() string    { return filepath.Join(b.root, "by-tag") }
func (b *Builder) dateRoot() string   { return filepath.Join(b.root, "by-date") }

// viewRoots returns all three tree roots. Removal and pruning always cover
// every tree, even for views currently disabled, since links may remain from
// when a view was enabled.
func (b *Builder) viewRoots() []string {
	return []string{b.sourceRoot(), b.tagRoot(), b.dateRoot()}
}

// Place ensures one link per enabled view and returns the full link set.
// Pre-existing correct links are left untouched, so a second call for an
// unchanged file produces no filesystem diff.
func (b *Builder) Place(f *hoard.StoredFile) ([]string, error) {
	var buckets []string
	if b.bySource {
		buckets = append(buckets, filepath.Join(b.sourceRoot(), hoard.SanitizeName(f.Source)))
	}
	if b.byDate {
		buckets = append(buckets, filepath.Join(b.dateRoot(), f.DateBucket()))
	}
	if b.byTag {
		for _, tag := range f.Tags {
			buckets = append(buckets, filepath.Join(b.tagRoot(), hoard.SanitizeName(tag)))
		}
	}

	var links []string
	failures := make(map[string]error)
	for _, dir := range buckets {
		link, err := b.ensureLink(dir, f)
		if err != nil {
			failures[filepath.Join(dir, f.Filename)] = err
			continue
		}
		links = append(links, link)
	}

	if len(failures) > 0 {
		return links, &hoard.PlacementError{Failures: failures}
	}
	return links, nil
}

// Retarget reconciles by-tag links against the file's current tag set.
// By-source and by-date links are never touched here.
func (b *Builder) Retarget(f *hoard.StoredFile) error {
	want := make(map[string]bool, len(f.Tags))
	for _, tag := range f.Tags {
		want[hoard.SanitizeName(tag)] = true
	}

	// Drop links in buckets the file no longer belongs to.
	entries, err := os.ReadDir(b.tagRoot())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading tag buckets: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || want[e.Name()] {
			continue
		}
		link, found, err := b.findLink(filepath.Join(b.tagRoot(), e.Name()), f)
		if err != nil {
			return err
		}
		if found {
			if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale tag link: %w", err)
			}
		}
	}

	// Create links for newly added tags.
	if b.byTag {
		failures := make(map[string]error)
		for bucket := range want {
			dir := filepath.Join(b.tagRoot(), bucket)
			if _, err := b.ensureLink(dir, f); err != nil {
				failures[filepath.Join(dir, f.Filename)] = err
			}
		}
		if len(failures) > 0 {
			return &hoard.PlacementError{Failures: failures}
		}
	}
	return nil
}

// Remove deletes every link across all three trees that resolves to the
// file's stored path.
func (b *Builder) Remove(f *hoard.StoredFile) error {
	target := filepath.Clean(f.Filepath)
	for _, root := range b.viewRoots() {
		err := walkSymlinks(root, func(link string) error {
			resolved, err := resolveLink(link)
			if err != nil {
				return nil // unreadable link; pruning handles it
			}
			if resolved == target {
				if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing link %s: %w", link, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// PruneBroken removes dangling symlinks from all three trees.
func (b *Builder) PruneBroken() ([]string, error) {
	var pruned []string
	for _, root := range b.viewRoots() {
		err := walkSymlinks(root, func(link string) error {
			if _, err := os.Stat(link); os.IsNotExist(err) {
				if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing broken link %s: %w", link, err)
				}
				pruned = append(pruned, link)
			}
			return nil
		})
		if err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}

// Stats counts symlinks per bucket in each tree.
func (b *Builder) Stats() (*hoard.IndexStats, error) {
	stats := &hoard.IndexStats{
		BySource: make(map[string]int),
		ByTag:    make(map[string]int),
		ByDate:   make(map[string]int),
	}
	for root, counts := range map[string]map[string]int{
		b.sourceRoot(): stats.BySource,
		b.tagRoot():    stats.ByTag,
		b.dateRoot():   stats.ByDate,
	} {
		buckets, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		for _, bucket := range buckets {
			if !bucket.IsDir() {
				continue
			}
			entries, err := os.ReadDir(filepath.Join(root, bucket.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading bucket %s: %w", bucket.Name(), err)
			}
			n := 0
			for _, e := range entries {
				if e.Type()&fs.ModeSymlink != 0 {
					n++
				}
			}
			counts[bucket.Name()] = n
		}
	}
	return stats, nil
}

// ensureLink guarantees a link to the file exists in the bucket directory and
// returns its path. The display name is used when free (or already ours); a
// name claimed by a different file falls back to the hash-suffixed form.
func (b *Builder) ensureLink(dir string, f *hoard.StoredFile) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating bucket: %w", err)
	}

	primary := filepath.Join(dir, f.Filename)
	claimed, err := claimLink(primary, f.Filepath)
	if err != nil {
		return "", err
	}
	if claimed {
		return primary, nil
	}

	// Display name collides with a different file's link. The suffixed slot
	// is derived from our hash, so it is deterministically ours.
	alt := filepath.Join(dir, hoard.SuffixedName(f.Filename, f.Hash))
	claimed, err = claimLink(alt, f.Filepath)
	if err != nil {
		return "", err
	}
	if claimed {
		return alt, nil
	}
	return "", fmt.Errorf("link slot occupied by a foreign file: %s", alt)
}

// claimLink tries to make linkPath a relative symlink to target. It reports
// true when the slot is ours: either a new link was created, or a correct
// link already existed. A dangling occupant is reclaimed; a healthy link to
// a different file, or a regular file, is never overwritten.
func claimLink(linkPath, target string) (bool, error) {
	rel, err := filepath.Rel(filepath.Dir(linkPath), target)
	if err != nil {
		return false, fmt.Errorf("computing relative target: %w", err)
	}

	if err := os.Symlink(rel, linkPath); err == nil {
		return true, nil
	} else if !os.IsExist(err) {
		return false, fmt.Errorf("creating link: %w", err)
	}

	// Slot occupied: decide whether it is already ours.
	fi, err := os.Lstat(linkPath)
	if err != nil {
		return false, fmt.Errorf("inspecting occupant: %w", err)
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return false, nil
	}

	resolved, err := resolveLink(linkPath)
	if err != nil {
		return false, fmt.Errorf("reading occupant: %w", err)
	}
	if resolved == filepath.Clean(target) {
		return true, nil
	}

	// Dangling occupant: the file it pointed at is gone, reclaim the slot.
	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("reclaiming slot: %w", err)
		}
		if err := os.Symlink(rel, linkPath); err != nil {
			if os.IsExist(err) {
				return false, nil // lost a concurrent claim
			}
			return false, fmt.Errorf("creating link: %w", err)
		}
		return true, nil
	}

	return false, nil
}

// findLink looks for this file's link in a bucket, checking the display name
// and the hash-suffixed fallback.
func (b *Builder) findLink(dir string, f *hoard.StoredFile) (string, bool, error) {
	target := filepath.Clean(f.Filepath)
	for _, name := range []string{f.Filename, hoard.SuffixedName(f.Filename, f.Hash)} {
		p := filepath.Join(dir, name)
		fi, err := os.Lstat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("inspecting %s: %w", p, err)
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			continue
		}
		resolved, err := resolveLink(p)
		if err != nil {
			continue
		}
		if resolved == target {
			return p, true, nil
		}
	}
	return "", false, nil
}

// resolveLink returns the cleaned absolute path a symlink points at, without
// requiring the destination to exist.
func resolveLink(linkPath string) (string, error) {
	dest, err := os.Readlink(linkPath)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(linkPath), dest)
	}
	return filepath.Clean(dest), nil
}

// walkSymlinks calls fn for every symlink under root. A missing root is not
// an error: buckets are created lazily.
func walkSymlinks(root string, fn func(link string) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		return fn(p)
	})
}

// Compile-time check that Builder implements hoard.Indexer
var _ hoard.Indexer = (*Builder)(nil)
