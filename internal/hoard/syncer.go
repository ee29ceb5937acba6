package hoard

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Syncer copies the content store to a mirror and keeps a catalog snapshot
// (the metadata database) alongside it. Content is keyed by hash, so a push
// never uploads bytes the mirror already holds.
//
// When an Encryptor is provided, content is encrypted with the public key
// before upload; the catalog snapshot is uploaded as-is so a fresh install
// can inspect what it has before unlocking anything.
type Syncer struct {
	store  Store
	mirror Mirror
	enc    Encryptor // nil disables encryption
	logger Logger
	clock  Clock
}

// NewSyncer creates a Syncer. enc may be nil to mirror content unencrypted.
func NewSyncer(store Store, mirror Mirror, enc Encryptor, logger Logger, clock Clock) *Syncer {
	return &Syncer{
		store:  store,
		mirror: mirror,
		enc:    enc,
		logger: logger,
		clock:  clock,
	}
}

// Push uploads every stored file missing from the mirror, then uploads a
// catalog snapshot versioned by push time. Returns the number of content
// objects uploaded.
func (y *Syncer) Push(ctx context.Context, installID string) (int, error) {
	if err := y.mirror.ValidateSetup(); err != nil {
		return 0, fmt.Errorf("validating mirror: %w", err)
	}

	files, err := y.store.ListFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing files: %w", err)
	}

	pushed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return pushed, err
		}

		ok, err := y.mirror.HasContent(f.Hash)
		if err != nil {
			return pushed, fmt.Errorf("checking mirror for %s: %w", f.Hash, err)
		}
		if ok {
			y.logger.Debug("content already mirrored", "hash", f.Hash)
			continue
		}

		if err := y.pushOne(f); err != nil {
			return pushed, fmt.Errorf("mirroring %s: %w", f.Filename, err)
		}
		pushed++
	}

	if err := y.pushCatalog(installID); err != nil {
		return pushed, err
	}

	y.logger.Info("mirror push complete", "uploaded", pushed, "total", len(files))
	return pushed, nil
}

// pushOne uploads a single stored file, encrypting first when configured.
func (y *Syncer) pushOne(f *StoredFile) error {
	src, err := os.Open(f.Filepath)
	if err != nil {
		return fmt.Errorf("opening stored file: %w", err)
	}
	defer src.Close()

	if y.enc == nil {
		return y.mirror.PutContent(f.Hash, src, f.Size)
	}

	// Encrypt to a temp file first: the mirror needs the ciphertext size up
	// front, and media files are too large to buffer in memory.
	tmp, err := os.CreateTemp("", "hoard-enc-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := y.enc.Encrypt(src, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encrypting content: %w", err)
	}

	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("sizing ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return fmt.Errorf("rewinding ciphertext: %w", err)
	}

	err = y.mirror.PutContent(f.Hash, tmp, size)
	tmp.Close()
	return err
}

// pushCatalog snapshots the metadata store and uploads it with a push-time
// version marker.
func (y *Syncer) pushCatalog(installID string) error {
	tmp, err := os.CreateTemp("", "hoard-catalog-*.db")
	if err != nil {
		return fmt.Errorf("creating catalog temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // VACUUM INTO refuses to overwrite
	defer os.Remove(tmpPath)

	if err := y.store.SnapshotTo(tmpPath); err != nil {
		return fmt.Errorf("snapshotting metadata store: %w", err)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("opening catalog snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat catalog snapshot: %w", err)
	}

	version := y.clock.Now().UTC().Unix()
	if err := y.mirror.PutCatalog(installID, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading catalog: %w", err)
	}
	return nil
}

// Fetch retrieves mirrored content by hash into destPath. dec must be the
// unlocked decryption context when the mirror holds ciphertext, nil otherwise.
func (y *Syncer) Fetch(ctx context.Context, hash, destPath string, dec DecryptionContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	ferr := y.fetchInto(hash, out, dec)
	cerr := out.Close()
	if ferr != nil {
		os.Remove(destPath)
		return ferr
	}
	if cerr != nil {
		os.Remove(destPath)
		return fmt.Errorf("closing destination: %w", cerr)
	}

	y.logger.Info("content fetched from mirror", "hash", hash, "dest", destPath)
	return nil
}

func (y *Syncer) fetchInto(hash string, w io.Writer, dec DecryptionContext) error {
	if dec == nil {
		if err := y.mirror.GetContent(hash, w); err != nil {
			return fmt.Errorf("fetching content: %w", err)
		}
		return nil
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(y.mirror.GetContent(hash, pw))
	}()

	if err := dec.Decrypt(pr, w); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("decrypting content: %w", err)
	}
	return nil
}
