package hoard

import (
	"context"
	"time"
)

// StoredFile is the canonical metadata record for one ingested file.
// Exactly one physical file exists in the content store per unique Hash,
// unless AllowDuplicate was set explicitly at insertion time.
type StoredFile struct {
	ID             int64
	URL            string // source URL; empty for files ingested without one
	Source         string // platform label, e.g. "youtube"
	Filepath       string // absolute path in the content store
	Filename       string
	Hash           string // SHA-256 hex digest of file bytes, immutable
	Size           int64
	Metadata       string // free-form JSON blob (title, duration, uploader, ...); opaque to the engine
	AllowDuplicate bool
	CreatedAt      time.Time // UTC ingestion timestamp
	Tags           []string  // associated tag names, populated by store reads
}

// DateBucket returns the YYYY-MM index bucket derived from the ingestion
// timestamp. Always computed in UTC, never from embedded media metadata.
func (f *StoredFile) DateBucket() string {
	return f.CreatedAt.UTC().Format("2006-01")
}

// TagAssignment pairs a tag name with whether an auto-tag rule assigned it.
type TagAssignment struct {
	Name string
	Auto bool
}

// AutoTagRule maps a URL substring pattern to a tag, applied at ingestion.
type AutoTagRule struct {
	ID      int64
	Pattern string
	Tag     string
	Enabled bool
}

// Store provides an interface for metadata persistence. It exclusively owns
// the downloads, tags, file_tags, file_urls and auto_tag_rules rows; the
// index trees are always rebuilt from this data, never the other way around.
type Store interface {
	// FindByURL returns the record for an exact URL match, checking both the
	// primary URL and any alternate URLs recorded via AddURL. Returns nil if
	// no record exists.
	FindByURL(ctx context.Context, url string) (*StoredFile, error)

	// FindByHash returns the record with the given content hash, or nil.
	// Records inserted with AllowDuplicate set are excluded.
	FindByHash(ctx context.Context, hash string) (*StoredFile, error)

	// FindByID returns the record with the given ID, or nil.
	FindByID(ctx context.Context, id int64) (*StoredFile, error)

	// Insert persists a new record together with its initial tag associations
	// in a single transaction and returns the assigned ID. Returns ErrConflict
	// if the content hash is already recorded and the record does not allow
	// duplicates; the hash uniqueness constraint is the authoritative guard
	// against concurrent check-then-insert races.
	Insert(ctx context.Context, file *StoredFile, tags []TagAssignment) (int64, error)

	// AddTag associates a tag with a file, creating the tag row on first use.
	// Idempotent: re-adding an existing association is a no-op. Tag names are
	// case-folded for uniqueness but keep the casing from first insertion.
	AddTag(ctx context.Context, fileID int64, tagName string, autoAssigned bool) error

	// RemoveTag removes a tag association. The tag row itself is never
	// deleted, even when unreferenced.
	RemoveTag(ctx context.Context, fileID int64, tagName string) error

	// TagsForFile returns the tag names associated with a file, sorted.
	TagsForFile(ctx context.Context, fileID int64) ([]string, error)

	// AddURL records an alternate URL for an existing file, so a second URL
	// pointing at identical content stays resolvable. Idempotent.
	AddURL(ctx context.Context, fileID int64, url string) error

	// RemoveFile deletes a record and cascades to its tag associations and
	// alternate URLs. Content store and index cleanup are the caller's job.
	RemoveFile(ctx context.Context, fileID int64) error

	// ListFiles returns all records ordered by ingestion time.
	ListFiles(ctx context.Context) ([]*StoredFile, error)

	// MatchAutoTagRules evaluates all enabled rules against the URL and
	// returns the union of matching tag names. Matching is case-insensitive
	// substring containment; blank patterns are skipped with a warning and
	// never block ingestion.
	MatchAutoTagRules(ctx context.Context, url string) ([]string, error)

	// AddAutoTagRule registers a pattern-to-tag rule, creating the tag row
	// if needed. Idempotent for an existing (pattern, tag) pair.
	AddAutoTagRule(ctx context.Context, pattern, tagName string) error

	// ListAutoTagRules returns all rules, enabled or not.
	ListAutoTagRules(ctx context.Context) ([]*AutoTagRule, error)

	// SnapshotTo writes a consistent copy of the whole metadata store to
	// destPath, for mirror catalog uploads.
	SnapshotTo(destPath string) error

	// Close closes the underlying connection.
	Close() error
}
