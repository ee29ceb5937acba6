package hoard

import (
	"context"
	"fmt"
)

// Service is the ingestion coordinator: it orchestrates duplicate checks,
// physical placement, metadata writes and index updates for incoming files,
// and keeps the three organization views consistent through later re-tagging
// and removals.
type Service struct {
	store   Store
	library Library
	indexer Indexer
	fsmgr   FilesystemManager
	logger  Logger
	clock   Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, library Library, indexer Indexer, fsmgr FilesystemManager, logger Logger, clock Clock) *Service {
	return &Service{
		store:   store,
		library: library,
		indexer: indexer,
		fsmgr:   fsmgr,
		logger:  logger,
		clock:   clock,
	}
}

// Remove deletes a stored file: its index links, its metadata record (with
// tag and URL cascades), and finally the physical file. Link removal comes
// first so the trees never reference a record that is already gone.
func (s *Service) Remove(ctx context.Context, fileID int64) error {
	file, err := s.store.FindByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}
	if file == nil {
		return fmt.Errorf("no stored file with id %d", fileID)
	}

	if err := s.indexer.Remove(file); err != nil {
		return fmt.Errorf("removing index links: %w", err)
	}

	if err := s.store.RemoveFile(ctx, fileID); err != nil {
		return fmt.Errorf("removing metadata record: %w", err)
	}

	if err := s.library.Remove(file.Filepath); err != nil {
		return fmt.Errorf("removing stored file: %w", err)
	}

	s.logger.Info("file removed", "id", fileID, "path", file.Filepath)
	return nil
}

// AddTags associates tags with an existing file and reconciles its by-tag
// links. Re-adding an existing tag is a no-op.
func (s *Service) AddTags(ctx context.Context, fileID int64, tags []string) error {
	for _, tag := range tags {
		if err := s.store.AddTag(ctx, fileID, tag, false); err != nil {
			return fmt.Errorf("adding tag %q: %w", tag, err)
		}
	}
	return s.retarget(ctx, fileID)
}

// RemoveTag removes a tag from a file and drops exactly its by-tag link,
// leaving by-source and by-date links untouched.
func (s *Service) RemoveTag(ctx context.Context, fileID int64, tag string) error {
	if err := s.store.RemoveTag(ctx, fileID, tag); err != nil {
		return fmt.Errorf("removing tag %q: %w", tag, err)
	}
	return s.retarget(ctx, fileID)
}

// retarget reloads a file's record and reconciles its by-tag links.
func (s *Service) retarget(ctx context.Context, fileID int64) error {
	file, err := s.store.FindByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}
	if file == nil {
		return fmt.Errorf("no stored file with id %d", fileID)
	}
	if err := s.indexer.Retarget(file); err != nil {
		return fmt.Errorf("reconciling tag links: %w", err)
	}
	return nil
}

// Repair re-runs index placement for every stored file and prunes dangling
// links. Placement is idempotent, so repair is safe to run at any time; a
// bucket that failed during ingestion is completed here.
// Returns the number of files re-placed and the number of links pruned.
func (s *Service) Repair(ctx context.Context) (placed int, pruned int, err error) {
	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing files: %w", err)
	}

	for _, f := range files {
		if _, perr := s.indexer.Place(f); perr != nil {
			s.logger.Warn("repair placement incomplete", "id", f.ID, "error", perr)
			continue
		}
		placed++
	}

	removed, err := s.indexer.PruneBroken()
	if err != nil {
		return placed, 0, fmt.Errorf("pruning broken links: %w", err)
	}
	for _, link := range removed {
		s.logger.Debug("pruned broken link", "link", link)
	}

	s.logger.Info("repair complete", "placed", placed, "pruned", len(removed))
	return placed, len(removed), nil
}

// List returns all stored file records ordered by ingestion time.
func (s *Service) List(ctx context.Context) ([]*StoredFile, error) {
	return s.store.ListFiles(ctx)
}

// Stats returns per-bucket link counts for the three organization views.
func (s *Service) Stats() (*IndexStats, error) {
	return s.indexer.Stats()
}

// AddRule registers an auto-tag rule.
func (s *Service) AddRule(ctx context.Context, pattern, tag string) error {
	return s.store.AddAutoTagRule(ctx, pattern, tag)
}

// ListRules returns all auto-tag rules.
func (s *Service) ListRules(ctx context.Context) ([]*AutoTagRule, error) {
	return s.store.ListAutoTagRules(ctx)
}
