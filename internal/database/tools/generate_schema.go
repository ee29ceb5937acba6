package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"hoard/internal/database"
	"hoard/internal/database/migrations"
)

func main() {
	// Create in-memory database with proper SQLite configuration
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// Apply all migrations
	if err := migrations.MigrateUp(db); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	// Extract schema from the migrated database
	schema, err := extractSchema(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to extract schema: %v\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join("internal", "database", "schema.go")
	if err := os.WriteFile(outPath, []byte(renderSource(schema)), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Generated %s from migrations\n", outPath)
}

// extractSchema extracts the SQL schema from the database.
// It queries sqlite_master for all CREATE statements, excluding:
// - SQLite internal tables (sqlite_*)
// - Migration tracking table (schema_migrations)
func extractSchema(db *sql.DB) (string, error) {
	query := `
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'schema_migrations'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name
	`

	rows, err := db.Query(query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var schema string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scan failed: %w", err)
		}
		schema += stmt + "\n\n"
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("rows error: %w", err)
	}
	return schema, nil
}

// renderSource wraps the extracted schema in the Go source file holding the
// Schema constant.
func renderSource(schema string) string {
	return `package database

// Code generated from migration files. DO NOT EDIT.
// Run 'go generate ./internal/database' to regenerate.
// Source: internal/database/migrations/files/*.sql

// Schema is the complete current schema, equivalent to running every
// migration. Tests apply it directly to in-memory databases to skip the
// migration machinery.
const Schema = ` + "`" + schema + "`\n"
}
