package migrations_test

import (
	"testing"

	"hoard/internal/database"
	"hoard/internal/database/migrations"
)

func TestMigrateUp(t *testing.T) {
	t.Run("applies all migrations", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}

		// Every table from the initial migration should exist.
		for _, table := range []string{"downloads", "tags", "file_tags", "file_urls", "auto_tag_rules"} {
			var name string
			err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
			if err != nil {
				t.Errorf("table %s missing after migration: %v", table, err)
			}
		}
	})

	t.Run("is a no-op at latest version", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := migrations.MigrateUp(db); err != nil {
			t.Errorf("second MigrateUp() error = %v", err)
		}
	})
}

func TestCheckStatus(t *testing.T) {
	t.Run("fails on unmigrated database", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.CheckStatus(db); err == nil {
			t.Error("CheckStatus() error = nil, want error")
		}
	})

	t.Run("passes at latest version", func(t *testing.T) {
		db, err := database.OpenConnection(":memory:")
		if err != nil {
			t.Fatalf("opening database: %v", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		if err := migrations.CheckStatus(db); err != nil {
			t.Errorf("CheckStatus() error = %v", err)
		}
	})
}
