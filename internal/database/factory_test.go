package database

import (
	"context"
	"path/filepath"
	"testing"

	"hoard/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("creates memory store", func(t *testing.T) {
		store, err := NewStoreFromConfig(config.DatabaseConfig{Type: "memory"}, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()

		// Migrations ran, so a basic query should succeed.
		if _, err := store.ListFiles(context.Background()); err != nil {
			t.Errorf("ListFiles() error = %v", err)
		}
	})

	t.Run("creates sqlite store in data dir", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir}, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()

		sqliteStore, ok := store.(*SQLiteStore)
		if !ok {
			t.Fatalf("store type = %T, want *SQLiteStore", store)
		}
		if got, want := sqliteStore.Path(), filepath.Join(dir, "hoard.db"); got != want {
			t.Errorf("Path() = %v, want %v", got, want)
		}
	})

	t.Run("requires data_dir for sqlite", func(t *testing.T) {
		if _, err := NewStoreFromConfig(config.DatabaseConfig{Type: "sqlite"}, nil); err == nil {
			t.Error("NewStoreFromConfig() error = nil, want error")
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		if _, err := NewStoreFromConfig(config.DatabaseConfig{Type: "postgres"}, nil); err == nil {
			t.Error("NewStoreFromConfig() error = nil, want error")
		}
	})
}
