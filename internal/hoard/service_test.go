package hoard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hoard/internal/hoard"
)

func TestService_Tagging(t *testing.T) {
	ctx := context.Background()

	t.Run("AddTags creates links for new tags", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if err := env.service.AddTags(ctx, res.FileID, []string{"music", "live"}); err != nil {
			t.Fatalf("AddTags() error = %v", err)
		}

		for _, tag := range []string{"music", "live"} {
			if _, err := os.Lstat(filepath.Join(env.root, "by-tag", tag, "clip.mp4")); err != nil {
				t.Errorf("link for %q missing: %v", tag, err)
			}
		}
	})

	t.Run("RemoveTag drops exactly that link", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			Tags:      []string{"music", "live"},
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if err := env.service.RemoveTag(ctx, res.FileID, "music"); err != nil {
			t.Fatalf("RemoveTag() error = %v", err)
		}

		if _, err := os.Lstat(filepath.Join(env.root, "by-tag", "music", "clip.mp4")); !os.IsNotExist(err) {
			t.Error("removed tag's link still present")
		}
		if _, err := os.Lstat(filepath.Join(env.root, "by-tag", "live", "clip.mp4")); err != nil {
			t.Errorf("remaining tag's link missing: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(env.root, "by-source", "unknown", "clip.mp4")); err != nil {
			t.Errorf("by-source link missing: %v", err)
		}
	})
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("removes links, record and file", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			Tags:      []string{"music"},
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if err := env.service.Remove(ctx, res.FileID); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		for _, link := range res.CreatedLinks {
			if _, err := os.Lstat(link); !os.IsNotExist(err) {
				t.Errorf("link %s still present", link)
			}
		}
		if _, err := os.Stat(res.StoredPath); !os.IsNotExist(err) {
			t.Error("stored file still present")
		}
		file, err := env.store.FindByID(ctx, res.FileID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if file != nil {
			t.Error("record still present")
		}
	})

	t.Run("fails for unknown id", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.service.Remove(ctx, 42); err == nil {
			t.Error("Remove() error = nil, want error")
		}
	})
}

func TestService_Repair(t *testing.T) {
	ctx := context.Background()

	t.Run("recreates missing links and prunes dangling ones", func(t *testing.T) {
		env := newTestEnv(t)

		res, err := env.service.Ingest(ctx, hoard.IngestRequest{
			LocalPath: stageFile(t, "clip.mp4", "video bytes"),
			Tags:      []string{"music"},
		})
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		// Sabotage: delete one good link and plant a dangling one.
		victim := filepath.Join(env.root, "by-tag", "music", "clip.mp4")
		if err := os.Remove(victim); err != nil {
			t.Fatalf("removing link: %v", err)
		}
		dangling := filepath.Join(env.root, "by-source", "unknown", "ghost.mp4")
		if err := os.Symlink("../../downloads/ghost.mp4", dangling); err != nil {
			t.Fatalf("planting dangling link: %v", err)
		}

		placed, pruned, err := env.service.Repair(ctx)
		if err != nil {
			t.Fatalf("Repair() error = %v", err)
		}
		if placed != 1 {
			t.Errorf("placed = %d, want 1", placed)
		}
		if pruned != 1 {
			t.Errorf("pruned = %d, want 1", pruned)
		}

		if _, err := os.Lstat(victim); err != nil {
			t.Errorf("repaired link missing: %v", err)
		}
		if _, err := os.Lstat(dangling); !os.IsNotExist(err) {
			t.Error("dangling link survived repair")
		}

		// A second repair has nothing left to prune.
		_, pruned, err = env.service.Repair(ctx)
		if err != nil {
			t.Fatalf("second Repair() error = %v", err)
		}
		if pruned != 0 {
			t.Errorf("second repair pruned = %d, want 0", pruned)
		}
		if _, err := os.Stat(res.StoredPath); err != nil {
			t.Errorf("stored file missing after repair: %v", err)
		}
	})
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("reports per-bucket counts", func(t *testing.T) {
		env := newTestEnv(t)

		for _, name := range []string{"one.mp4", "two.mp4"} {
			if _, err := env.service.Ingest(ctx, hoard.IngestRequest{
				LocalPath: stageFile(t, name, "content of "+name),
				Tags:      []string{"music"},
			}); err != nil {
				t.Fatalf("Ingest(%s) error = %v", name, err)
			}
		}

		stats, err := env.service.Stats()
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if got := stats.BySource["unknown"]; got != 2 {
			t.Errorf("BySource[unknown] = %d, want 2", got)
		}
		if got := stats.ByTag["music"]; got != 2 {
			t.Errorf("ByTag[music] = %d, want 2", got)
		}
		if got := stats.ByDate["2024-01"]; got != 2 {
			t.Errorf("ByDate[2024-01] = %d, want 2", got)
		}
	})
}
