package hoard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// IngestStatus describes the outcome of an ingestion request.
type IngestStatus string

const (
	// StatusNew means the file was stored and indexed for the first time.
	StatusNew IngestStatus = "new"
	// StatusDuplicate means the URL or content was already known; no new
	// physical copy was created.
	StatusDuplicate IngestStatus = "duplicate"
)

// IngestRequest describes one incoming file. The bytes must already be on
// local disk; fetching is the caller's concern.
type IngestRequest struct {
	LocalPath string   // path to the fetched file, consumed on success
	SourceURL string   // resolved source URL, may be empty for local-only files
	Platform  string   // platform label; derived from SourceURL when empty
	Tags      []string // explicitly supplied tags
	Name      string   // display name override; defaults to the file's base name
	Metadata  string   // opaque JSON metadata blob from the fetcher
}

// IngestResult reports what happened to an ingestion request.
type IngestResult struct {
	Status       IngestStatus
	FileID       int64
	StoredPath   string
	CreatedLinks []string
}

// Ingest runs the full coordination flow for one incoming file:
// URL duplicate check, content hash duplicate check, physical placement,
// metadata insert with the tag union, and index placement.
//
// Duplicates are a recognized outcome, not an error. A lost insert race
// (concurrent ingest of identical content) also resolves to the duplicate
// path. Index placement failures degrade to a warning: the file is safely
// stored and discoverable through the metadata store, and a later repair
// completes the missing links.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.LocalPath == "" {
		return nil, fmt.Errorf("no local file path provided")
	}

	// Duplicate check by URL: cheap, and short-circuits before any disk work.
	if req.SourceURL != "" {
		existing, err := s.store.FindByURL(ctx, req.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("checking for existing url: %w", err)
		}
		if existing != nil {
			s.logger.Info("url already ingested", "url", req.SourceURL, "id", existing.ID)
			return &IngestResult{
				Status:     StatusDuplicate,
				FileID:     existing.ID,
				StoredPath: existing.Filepath,
			}, nil
		}
	}

	path, err := s.fsmgr.Resolve(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("resolving file: %w", err)
	}
	if path.IsDir() {
		return nil, fmt.Errorf("not a regular file: %s", path.String())
	}

	hash, size, err := s.hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	// Cancellation before STORE leaves no trace.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Duplicate check by content hash: catches re-uploads and mirrors that
	// arrive via a different URL.
	existing, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("checking for existing content: %w", err)
	}
	if existing != nil {
		return s.adoptDuplicate(ctx, existing, req, path.String())
	}

	platform := req.Platform
	if platform == "" {
		platform = DetectPlatform(req.SourceURL)
	}

	// Tag union: auto-tag rule matches plus explicitly supplied tags,
	// computed up front so the insert persists them atomically.
	var autoTags []string
	if req.SourceURL != "" {
		autoTags, err = s.store.MatchAutoTagRules(ctx, req.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("evaluating auto-tag rules: %w", err)
		}
	}
	assignments := unionTags(autoTags, req.Tags)
	tags := tagNames(assignments)

	name := req.Name
	if name == "" {
		name = filepath.Base(path.String())
	}

	storedPath, err := s.library.Place(path.String(), name, hash)
	if err != nil {
		return nil, fmt.Errorf("storing file: %w", err)
	}

	metadata := req.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	file := &StoredFile{
		URL:       req.SourceURL,
		Source:    platform,
		Filepath:  storedPath,
		Filename:  filepath.Base(storedPath),
		Hash:      hash,
		Size:      size,
		Metadata:  metadata,
		CreatedAt: s.clock.Now().UTC(),
		Tags:      tags,
	}

	id, err := s.store.Insert(ctx, file, assignments)
	if err != nil {
		// Lost a concurrent race: identical content was inserted between our
		// hash check and our insert. Undo the physical placement and follow
		// the duplicate path against the winner.
		if errors.Is(err, ErrConflict) {
			if rerr := s.library.Remove(storedPath); rerr != nil {
				s.logger.Warn("could not remove racing copy", "path", storedPath, "error", rerr)
			}
			winner, ferr := s.store.FindByHash(ctx, hash)
			if ferr != nil || winner == nil {
				return nil, fmt.Errorf("inserting metadata record: %w", err)
			}
			s.logger.Info("lost insert race, adopting existing record", "id", winner.ID)
			return s.adoptDuplicate(ctx, winner, req, "")
		}
		// Fatal: leave no partial state. The metadata row was never written,
		// so only the physical placement needs to be undone.
		if rerr := s.library.Remove(storedPath); rerr != nil {
			s.logger.Warn("could not undo placement", "path", storedPath, "error", rerr)
		}
		return nil, fmt.Errorf("inserting metadata record: %w", err)
	}
	file.ID = id

	links, err := s.indexer.Place(file)
	if err != nil {
		s.logger.Warn("index placement incomplete", "id", id, "error", err)
	}

	s.logger.Info("file ingested", "id", id, "path", storedPath, "tags", strings.Join(tags, ","))
	return &IngestResult{
		Status:       StatusNew,
		FileID:       id,
		StoredPath:   storedPath,
		CreatedLinks: links,
	}, nil
}

// adoptDuplicate finalizes an ingestion whose content already exists:
// the freshly fetched bytes at discardPath (if any) are deleted, the new URL
// and any supplied tags are associated with the existing record so tagging
// intent is not lost, and the by-tag links are reconciled.
func (s *Service) adoptDuplicate(ctx context.Context, existing *StoredFile, req IngestRequest, discardPath string) (*IngestResult, error) {
	if discardPath != "" {
		if err := s.library.Discard(discardPath); err != nil {
			s.logger.Warn("could not discard duplicate bytes", "path", discardPath, "error", err)
		}
	}

	if req.SourceURL != "" && req.SourceURL != existing.URL {
		if err := s.store.AddURL(ctx, existing.ID, req.SourceURL); err != nil {
			return nil, fmt.Errorf("recording alternate url: %w", err)
		}
	}

	if len(req.Tags) > 0 {
		for _, tag := range req.Tags {
			if err := s.store.AddTag(ctx, existing.ID, tag, false); err != nil {
				return nil, fmt.Errorf("adding tag %q: %w", tag, err)
			}
		}
		if err := s.retarget(ctx, existing.ID); err != nil {
			s.logger.Warn("tag link reconciliation incomplete", "id", existing.ID, "error", err)
		}
	}

	s.logger.Info("duplicate content", "id", existing.ID, "hash", existing.Hash)
	return &IngestResult{
		Status:     StatusDuplicate,
		FileID:     existing.ID,
		StoredPath: existing.Filepath,
	}, nil
}

// hashFile streams the file through SHA-256 and returns the hex digest and
// byte count.
func (s *Service) hashFile(path *Path) (string, int64, error) {
	r, err := s.fsmgr.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()

	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// unionTags merges auto-assigned and explicit tags, preserving first-seen
// order and deduplicating case-insensitively. A tag named by both a rule and
// the request keeps the auto flag from its first appearance.
func unionTags(auto, explicit []string) []TagAssignment {
	seen := make(map[string]bool)
	var out []TagAssignment
	add := func(names []string, isAuto bool) {
		for _, t := range names {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, TagAssignment{Name: t, Auto: isAuto})
		}
	}
	add(auto, true)
	add(explicit, false)
	return out
}

func tagNames(assignments []TagAssignment) []string {
	names := make([]string, len(assignments))
	for i, a := range assignments {
		names[i] = a.Name
	}
	return names
}
