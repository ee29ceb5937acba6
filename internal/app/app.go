package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"hoard/internal/config"
	"hoard/internal/database"
	"hoard/internal/encryption"
	"hoard/internal/fs"
	"hoard/internal/hoard"
	"hoard/internal/index"
	"hoard/internal/library"
	"hoard/internal/mirror"
)

// HoardApp is the application layer between the CLI and the Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the store lifecycle on Close.
type HoardApp struct {
	cfg     *config.Config
	store   hoard.Store
	library *library.FilesystemLibrary
	indexer *index.Builder
	fsmgr   hoard.FilesystemManager
	service *hoard.Service
	logger  hoard.Logger
	logFile *os.File
}

// NewHoardApp creates a fully wired HoardApp from the given config.
// operation identifies the CLI command being run (e.g. "Ingest", "Repair").
// The caller must call Close when done.
func NewHoardApp(cfg *config.Config, operation string) (*HoardApp, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("no root_dir configured")
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	fsmgr := fs.NewOSFilesystemManager()

	store, err := database.NewStoreFromConfig(cfg.Database, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	lib, err := library.New(cfg.RootDir)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	indexer := index.New(cfg.RootDir, index.Options{
		BySource: cfg.Organize.BySource,
		ByTag:    cfg.Organize.ByTag,
		ByDate:   cfg.Organize.ByDate,
	})

	svc := hoard.NewService(store, lib, indexer, fsmgr, logger, hoard.RealClock{})

	return &HoardApp{
		cfg:     cfg,
		store:   store,
		library: lib,
		indexer: indexer,
		fsmgr:   fsmgr,
		service: svc,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// IngestOptions carries the CLI flags for an ingestion.
type IngestOptions struct {
	URL       string
	Platform  string
	Tags      []string
	Name      string
	Metadata  string
	Recursive bool // ingest directories recursively
}

// Ingest resolves the given path and ingests the file. A directory ingests
// every regular file it contains. Returns one result per ingested file.
func (a *HoardApp) Ingest(ctx context.Context, rawPath string, opts IngestOptions) ([]*hoard.IngestResult, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if !p.IsDir() {
		res, err := a.service.Ingest(ctx, a.requestFor(p.String(), opts))
		if err != nil {
			return nil, err
		}
		return []*hoard.IngestResult{res}, nil
	}

	// Batch mode: the URL identifies the collection, not any single file, so
	// it only applies to single-file ingestion.
	if opts.URL != "" {
		return nil, fmt.Errorf("--url cannot be combined with a directory")
	}

	paths, err := a.fsmgr.FindFiles(p, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	var results []*hoard.IngestResult
	for _, fp := range paths {
		res, err := a.service.Ingest(ctx, a.requestFor(fp.String(), opts))
		if err != nil {
			return results, fmt.Errorf("ingesting %s: %w", fp.String(), err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (a *HoardApp) requestFor(path string, opts IngestOptions) hoard.IngestRequest {
	return hoard.IngestRequest{
		LocalPath: path,
		SourceURL: opts.URL,
		Platform:  opts.Platform,
		Tags:      opts.Tags,
		Name:      opts.Name,
		Metadata:  opts.Metadata,
	}
}

// AddTags associates tags with a stored file and reconciles its links.
func (a *HoardApp) AddTags(ctx context.Context, fileID int64, tags []string) error {
	return a.service.AddTags(ctx, fileID, tags)
}

// RemoveTag removes a tag from a stored file and reconciles its links.
func (a *HoardApp) RemoveTag(ctx context.Context, fileID int64, tag string) error {
	return a.service.RemoveTag(ctx, fileID, tag)
}

// Remove deletes a stored file, its metadata and all its index links.
func (a *HoardApp) Remove(ctx context.Context, fileID int64) error {
	return a.service.Remove(ctx, fileID)
}

// List returns all stored file records.
func (a *HoardApp) List(ctx context.Context) ([]*hoard.StoredFile, error) {
	return a.service.List(ctx)
}

// Repair re-places all index links and prunes dangling ones.
func (a *HoardApp) Repair(ctx context.Context) (placed, pruned int, err error) {
	return a.service.Repair(ctx)
}

// Stats returns per-bucket link counts for the organization views.
func (a *HoardApp) Stats() (*hoard.IndexStats, error) {
	return a.service.Stats()
}

// AddRule registers an auto-tag rule.
func (a *HoardApp) AddRule(ctx context.Context, pattern, tag string) error {
	return a.service.AddRule(ctx, pattern, tag)
}

// ListRules returns all auto-tag rules.
func (a *HoardApp) ListRules(ctx context.Context) ([]*hoard.AutoTagRule, error) {
	return a.service.ListRules(ctx)
}

// newSyncer constructs the mirror backend and encryptor on demand; only the
// mirror commands pay their setup cost.
func (a *HoardApp) newSyncer(ctx context.Context) (*hoard.Syncer, hoard.Encryptor, error) {
	m, err := mirror.NewMirrorFromConfig(ctx, a.cfg.Mirror)
	if err != nil {
		return nil, nil, fmt.Errorf("creating mirror: %w", err)
	}

	var enc hoard.Encryptor
	if a.cfg.Mirror.Encrypt {
		enc, err = encryption.NewEncryptorFromConfig(a.cfg.Encryption)
		if err != nil {
			return nil, nil, fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return nil, nil, fmt.Errorf("mirror encryption enabled but keys not set up: run 'hoard mirror init'")
		}
	}

	return hoard.NewSyncer(a.store, m, enc, a.logger, hoard.RealClock{}), enc, nil
}

// MirrorEncrypted reports whether mirror uploads are configured to be
// encrypted (so the CLI knows to prompt for a passphrase on fetch).
func (a *HoardApp) MirrorEncrypted() bool {
	return a.cfg.Mirror.Encrypt
}

// MirrorInit generates the encryption key pair for mirror uploads.
func (a *HoardApp) MirrorInit(passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc.IsConfigured() {
		return fmt.Errorf("encryption keys already exist at %s", a.cfg.Encryption.PrivateKeyPath)
	}
	return enc.Setup(passphrase)
}

// MirrorPush uploads missing content and a fresh catalog snapshot to the
// mirror. Returns the number of content objects uploaded.
func (a *HoardApp) MirrorPush(ctx context.Context) (int, error) {
	syncer, _, err := a.newSyncer(ctx)
	if err != nil {
		return 0, err
	}
	return syncer.Push(ctx, a.cfg.InstallID)
}

// MirrorFetch retrieves mirrored content by hash into destPath, decrypting
// with the passphrase-unlocked key when mirror encryption is enabled.
func (a *HoardApp) MirrorFetch(ctx context.Context, hash, destPath, passphrase string) error {
	syncer, enc, err := a.newSyncer(ctx)
	if err != nil {
		return err
	}

	var dec hoard.DecryptionContext
	if enc != nil {
		dec, err = enc.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking decryption key: %w", err)
		}
	}
	return syncer.Fetch(ctx, hash, destPath, dec)
}

// Close closes the store and the log file.
func (a *HoardApp) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
