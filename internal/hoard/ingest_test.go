package hoard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hoard/internal/fs"
	"hoard/internal/hoard"
	"hoard/internal/index"
	"hoard/internal/library"
	"hoard/internal/testutil"
)

// testEnv wires a Service against a real temp-dir organization root and an
// in-memory metadata store.
type testEnv struct {
	service *hoard.Service
	store   hoard.Store
	root    string
	clock   *testutil.StubClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	store := testutil.NewTestStore(t)

	lib, err := library.New(root)
	if err != nil {
		t.Fatalf("creating library: %v", err)
	}

	indexer := index.New(root, index.Options{BySource: true, ByTag: true, ByDate: true})
	clock := testutil.FixedClock()
	svc := hoard.NewService(store, lib, indexer, fs.NewOSFilesystemManager(), hoard.NewNopLogger(), clock)

	return &testEnv{service: svc, store: store, root: root, clock: clock}
}

// stageFile writes fetched bytes outside the organization root.
func stageFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("staging file: %v", err)
	}
	return path
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests a new file", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			SourceURL: "https://youtube.com/watch?v=abc",
			Tags:      []string{"music"},
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if res.Status != hoard.StatusNew {
			t.Errorf("Status = %v, want %v", res.Status, hoard.StatusNew)
		}
		if res.StoredPath != filepath.Join(env.root, "downloads", "clip.mp4") {
			t.Errorf("StoredPath = %v", res.StoredPath)
		}
		if _, err := os.Stat(res.StoredPath); err != nil {
			t.Errorf("stored file missing: %v", err)
		}
		// Expect by-source, by-date and one by-tag link.
		if len(res.CreatedLinks) != 3 {
			t.Errorf("CreatedLinks = %v, want 3 links", res.CreatedLinks)
		}

		file, err := env.store.FindByID(ctx, res.FileID)
		if err != nil || file == nil {
			t.Fatalf("FindByID() = %v, %v", file, err)
		}
		if file.Source != "youtube" {
			t.Errorf("Source = %q, want youtube", file.Source)
		}
		if file.Metadata != "{}" {
			t.Errorf("Metadata = %q, want {}", file.Metadata)
		}
		if file.Size != int64(len("video bytes")) {
			t.Errorf("Size = %d", file.Size)
		}
		if file.Hash != testutil.SHA256Hex([]byte("video bytes")) {
			t.Errorf("Hash = %q", file.Hash)
		}
		if len(file.Tags) != 1 || file.Tags[0] != "music" {
			t.Errorf("Tags = %v, want [music]", file.Tags)
		}
	})

	t.Run("applies auto-tag rules", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.service.AddRule(ctx, "youtube.com", "video"); err != nil {
			t.Fatalf("AddRule() error = %v", err)
		}

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			SourceURL: "https://youtube.com/watch?v=abc",
			Tags:      []string{"music"},
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		file, err := env.store.FindByID(ctx, res.FileID)
		if err != nil || file == nil {
			t.Fatalf("FindByID() = %v, %v", file, err)
		}
		if len(file.Tags) != 2 {
			t.Fatalf("Tags = %v, want [music video]", file.Tags)
		}

		// A link exists for the auto-assigned tag too.
		if _, err := os.Lstat(filepath.Join(env.root, "by-tag", "video", "clip.mp4")); err != nil {
			t.Errorf("auto-tag link missing: %v", err)
		}
	})

	t.Run("short-circuits on duplicate url", func(t *testing.T) {
		env := newTestEnv(t)
		url := "https://youtube.com/watch?v=abc"

		first, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			SourceURL: url,
		})
		if err != nil {
			t.Fatalf("first Ingest() error = %v", err)
		}

		src := stageFile(t, "again.mp4", "different bytes this time")
		second, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: src,
			SourceURL: url,
			Tags:      []string{"late-tag"},
		})
		if err != nil {
			t.Fatalf("second Ingest() error = %v", err)
		}

		if second.Status != hoard.StatusDuplicate {
			t.Errorf("Status = %v, want duplicate", second.Status)
		}
		if second.FileID != first.FileID {
			t.Errorf("FileID = %d, want %d", second.FileID, first.FileID)
		}

		// The URL path never reads the staged bytes; they are left alone.
		if _, err := os.Stat(src); err != nil {
			t.Errorf("staged file was consumed: %v", err)
		}

		// URL duplicates do not merge tags: the content was already declined.
		file, err := env.store.FindByID(ctx, first.FileID)
		if err != nil || file == nil {
			t.Fatalf("FindByID() = %v, %v", file, err)
		}
		if len(file.Tags) != 0 {
			t.Errorf("Tags = %v, want none", file.Tags)
		}
	})

	t.Run("adopts duplicate content from a different url", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "same bytes"),
			SourceURL: "https://youtube.com/watch?v=abc",
		})
		if err != nil {
			t.Fatalf("first Ingest() error = %v", err)
		}

		src := stageFile(t, "mirror.mp4", "same bytes")
		altURL := "https://vimeo.com/999"
		second, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: src,
			SourceURL: altURL,
			Tags:      []string{"mirrored"},
		})
		if err != nil {
			t.Fatalf("second Ingest() error = %v", err)
		}

		if second.Status != hoard.StatusDuplicate {
			t.Errorf("Status = %v, want duplicate", second.Status)
		}
		if second.StoredPath != first.StoredPath {
			t.Errorf("StoredPath = %v, want %v", second.StoredPath, first.StoredPath)
		}

		// The freshly fetched duplicate bytes are discarded.
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("duplicate bytes not discarded")
		}

		// The alternate URL now resolves to the same record.
		byAlt, err := env.store.FindByURL(ctx, altURL)
		if err != nil || byAlt == nil {
			t.Fatalf("FindByURL(alt) = %v, %v", byAlt, err)
		}
		if byAlt.ID != first.FileID {
			t.Errorf("alternate url resolves to #%d, want #%d", byAlt.ID, first.FileID)
		}

		// Tagging intent from the duplicate request is preserved.
		if len(byAlt.Tags) != 1 || byAlt.Tags[0] != "mirrored" {
			t.Errorf("Tags = %v, want [mirrored]", byAlt.Tags)
		}
		if _, err := os.Lstat(filepath.Join(env.root, "by-tag", "mirrored", "clip.mp4")); err != nil {
			t.Errorf("merged tag link missing: %v", err)
		}

		// Still exactly one physical copy.
		entries, err := os.ReadDir(filepath.Join(env.root, "downloads"))
		if err != nil {
			t.Fatalf("reading downloads: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("downloads holds %d files, want 1", len(entries))
		}
	})

	t.Run("rejects directories", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.service.Ingest(ctx, hoard.IngestRequest{LocalPath: t.TempDir()})
		if err == nil {
			t.Error("Ingest() error = nil, want error for directory")
		}
	})

	t.Run("stops cleanly on cancelled context", func(t *testing.T) {
		env := newTestEnv(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		src := stageFile(t, "clip.mp4", "video bytes")
		_, err := env.service.Ingest(cancelled, hoard.IngestRequest{LocalPath: src})
		if err == nil {
			t.Fatal("Ingest() error = nil, want context error")
		}

		// Nothing was stored.
		entries, err := os.ReadDir(filepath.Join(env.root, "downloads"))
		if err != nil {
			t.Fatalf("reading downloads: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("downloads holds %d files, want 0", len(entries))
		}
	})

	t.Run("honors platform override and name override", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "raw-download.bin", "video bytes"),
			SourceURL: "https://example.com/video",
			Platform:  "archive",
			Name:      "My Concert.mp4",
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if want := filepath.Join(env.root, "downloads", "My Concert.mp4"); res.StoredPath != want {
			t.Errorf("StoredPath = %v, want %v", res.StoredPath, want)
		}
		if _, err := os.Lstat(filepath.Join(env.root, "by-source", "archive", "My Concert.mp4")); err != nil {
			t.Errorf("by-source link missing: %v", err)
		}
	})

	t.Run("buckets by ingestion month", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		// FixedClock pins ingestion to January 2024.
		if _, err := os.Lstat(filepath.Join(env.root, "by-date", "2024-01", "clip.mp4")); err != nil {
			t.Errorf("by-date link missing: %v", err)
		}
		file, err := env.store.FindByID(ctx, res.FileID)
		if err != nil || file == nil {
			t.Fatalf("FindByID() = %v, %v", file, err)
		}
		if file.DateBucket() != "2024-01" {
			t.Errorf("DateBucket() = %q, want 2024-01", file.DateBucket())
		}
	})
}

// conflictingStore delegates to a real store but runs a hook right before the
// first Insert, simulating a concurrent ingestion of identical content that
// wins the race.
type conflictingStore struct {
	hoard.Store
	beforeInsert func(ctx context.Context)
}

func (s *conflictingStore) Insert(ctx context.Context, file *hoard.StoredFile, tags []hoard.TagAssignment) (int64, error) {
	if s.beforeInsert != nil {
		hook := s.beforeInsert
		s.beforeInsert = nil
		hook(ctx)
	}
	return s.Store.Insert(ctx, file, tags)
}

func TestService_Ingest_LostInsertRace(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	base := testutil.NewTestStore(t)

	lib, err := library.New(root)
	if err != nil {
		t.Fatalf("creating library: %v", err)
	}
	indexer := index.New(root, index.Options{BySource: true, ByTag: true, ByDate: true})
	clock := testutil.FixedClock()

	content := "same bytes"
	var winnerID int64
	store := &conflictingStore{Store: base}
	store.beforeInsert = func(ctx context.Context) {
		winnerPath := filepath.Join(root, "downloads", "winner.mp4")
		if err := os.WriteFile(winnerPath, []byte(content), 0644); err != nil {
			t.Fatalf("staging winner: %v", err)
		}
		id, err := base.Insert(ctx, &hoard.StoredFile{
			URL:       "https://vimeo.com/999",
			Source:    "vimeo",
			Filepath:  winnerPath,
			Filename:  "winner.mp4",
			Hash:      testutil.SHA256Hex([]byte(content)),
			Size:      int64(len(content)),
			Metadata:  "{}",
			CreatedAt: clock.Now().UTC(),
		}, nil)
		if err != nil {
			t.Fatalf("inserting winner: %v", err)
		}
		winnerID = id
	}

	svc := hoard.NewService(store, lib, indexer, fs.NewOSFilesystemManager(), hoard.NewNopLogger(), clock)

	res, err := svc.Ingest(ctx, hoard.IngestRequest{
		LocalPath: stageFile(t, "clip.mp4", content),
		SourceURL: "https://youtube.com/watch?v=abc",
		Tags:      []string{"music"},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.Status != hoard.StatusDuplicate {
		t.Errorf("Status = %v, want duplicate", res.Status)
	}
	if res.FileID != winnerID {
		t.Errorf("FileID = %d, want winner #%d", res.FileID, winnerID)
	}

	// The copy placed before the losing insert is undone; the winner's file
	// is the only physical copy left.
	if _, err := os.Stat(filepath.Join(root, "downloads", "clip.mp4")); !os.IsNotExist(err) {
		t.Error("racing copy not removed from the content store")
	}
	entries, err := os.ReadDir(filepath.Join(root, "downloads"))
	if err != nil {
		t.Fatalf("reading downloads: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("downloads holds %d files, want 1", len(entries))
	}

	// Tagging intent and the losing request's url land on the winner.
	file, err := base.FindByID(ctx, winnerID)
	if err != nil || file == nil {
		t.Fatalf("FindByID() = %v, %v", file, err)
	}
	if len(file.Tags) != 1 || file.Tags[0] != "music" {
		t.Errorf("Tags = %v, want [music]", file.Tags)
	}
	byURL, err := base.FindByURL(ctx, "https://youtube.com/watch?v=abc")
	if err != nil || byURL == nil {
		t.Fatalf("FindByURL() = %v, %v", byURL, err)
	}
	if byURL.ID != winnerID {
		t.Errorf("losing url resolves to #%d, want winner #%d", byURL.ID, winnerID)
	}
}
