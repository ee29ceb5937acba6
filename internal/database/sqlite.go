package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"hoard/internal/database/migrations"
	"hoard/internal/hoard"
)

// SQLiteStore implements hoard.Store on a local sqlite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger hoard.Logger
}

// fileColumns is the select list matching scanFile. Keep them in sync.
const fileColumns = `id, url, source, filepath, filename, hash, size, metadata, allow_duplicate, created_at`

// OpenConnection opens a sqlite database at the given path with the pragmas
// the store relies on: foreign key enforcement for the cascade deletes, and a
// busy timeout so concurrent writers queue instead of failing immediately.
// The pragmas ride in the DSN, not a PRAGMA Exec: database/sql pools
// connections, and an Exec configures only whichever connection served it.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=1&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if path == ":memory:" {
		// Every new connection to :memory: is a separate empty database.
		// Pin the pool to a single connection that is kept idle rather than
		// discarded, so all queries reach the one database holding the data.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return db, nil
}

// NewSQLiteStore opens the database at path, runs any pending migrations and
// returns a ready store. A nil logger disables store-level warnings.
func NewSQLiteStore(path string, logger hoard.Logger) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return NewSQLiteStoreFromDB(db, path, logger), nil
}

// NewSQLiteStoreFromDB wraps an already-open connection. The caller is
// responsible for the schema being in place.
func NewSQLiteStoreFromDB(db *sql.DB, path string, logger hoard.Logger) *SQLiteStore {
	if logger == nil {
		logger = hoard.NewNopLogger()
	}
	return &SQLiteStore{db: db, path: path, logger: logger}
}

// Path returns the database file path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByURL(ctx context.Context, url string) (*hoard.StoredFile, error) {
	file, err := s.findOne(ctx,
		`SELECT `+fileColumns+` FROM downloads WHERE url = ?`, url)
	if err != nil || file != nil {
		return file, err
	}
	// Alternate URLs recorded against an existing file resolve the same way.
	return s.findOne(ctx,
		`SELECT d.`+strings.ReplaceAll(fileColumns, ", ", ", d.")+`
		 FROM downloads d JOIN file_urls fu ON fu.file_id = d.id
		 WHERE fu.url = ?`, url)
}

func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*hoard.StoredFile, error) {
	return s.findOne(ctx,
		`SELECT `+fileColumns+` FROM downloads WHERE hash = ? AND allow_duplicate = 0`, hash)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*hoard.StoredFile, error) {
	return s.findOne(ctx,
		`SELECT `+fileColumns+` FROM downloads WHERE id = ?`, id)
}

func (s *SQLiteStore) Insert(ctx context.Context, file *hoard.StoredFile, tags []hoard.TagAssignment) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO downloads (url, source, filepath, filename, hash, size, metadata, allow_duplicate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(file.URL), file.Source, file.Filepath, file.Filename,
		file.Hash, file.Size, file.Metadata, file.AllowDuplicate, file.CreatedAt.UTC())
	if err != nil {
		return 0, mapInsertError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}

	for _, tag := range tags {
		tagID, err := getOrCreateTag(ctx, tx, tag.Name)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO file_tags (file_id, tag_id, auto_assigned) VALUES (?, ?, ?)`,
			id, tagID, tag.Auto); err != nil {
			return 0, fmt.Errorf("associating tag %q: %w", tag.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, mapInsertError(err)
	}
	return id, nil
}

func (s *SQLiteStore) AddTag(ctx context.Context, fileID int64, tagName string, autoAssigned bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tagID, err := getOrCreateTag(ctx, tx, tagName)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO file_tags (file_id, tag_id, auto_assigned) VALUES (?, ?, ?)`,
		fileID, tagID, autoAssigned); err != nil {
		return fmt.Errorf("associating tag %q: %w", tagName, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveTag(ctx context.Context, fileID int64, tagName string) error {
	// Tag name comparison is case-insensitive via the column collation.
	// The tag row itself stays: other files may reference it, and rules do.
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM file_tags
		 WHERE file_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		fileID, tagName)
	if err != nil {
		return fmt.Errorf("removing tag %q: %w", tagName, err)
	}
	return nil
}

func (s *SQLiteStore) TagsForFile(ctx context.Context, fileID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.name FROM tags t
		 JOIN file_tags ft ON ft.tag_id = t.id
		 WHERE ft.file_id = ?
		 ORDER BY t.name`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) AddURL(ctx context.Context, fileID int64, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO file_urls (file_id, url) VALUES (?, ?)`, fileID, url)
	if err != nil {
		return fmt.Errorf("recording url: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveFile(ctx context.Context, fileID int64) error {
	// file_tags and file_urls rows cascade with the downloads row.
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("removing record %d: %w", fileID, err)
	}
	return nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context) ([]*hoard.StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM downloads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var files []*hoard.StoredFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.Tags, err = s.TagsForFile(ctx, file.ID); err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (s *SQLiteStore) MatchAutoTagRules(ctx context.Context, url string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.pattern, t.name FROM auto_tag_rules r
		 JOIN tags t ON t.id = r.tag_id
		 WHERE r.enabled = 1
		 ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("querying auto-tag rules: %w", err)
	}
	defer rows.Close()

	lowered := strings.ToLower(url)
	seen := make(map[string]bool)
	var matched []string
	for rows.Next() {
		var pattern, tag string
		if err := rows.Scan(&pattern, &tag); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			// A blank pattern would match everything; skip it rather than
			// spray a tag across every ingestion.
			s.logger.Warn("skipping blank auto-tag pattern", "tag", tag)
			continue
		}
		if !strings.Contains(lowered, strings.ToLower(pattern)) {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		matched = append(matched, tag)
	}
	return matched, rows.Err()
}

func (s *SQLiteStore) AddAutoTagRule(ctx context.Context, pattern, tagName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tagID, err := getOrCreateTag(ctx, tx, tagName)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO auto_tag_rules (pattern, tag_id) VALUES (?, ?)`,
		pattern, tagID); err != nil {
		return fmt.Errorf("adding auto-tag rule: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListAutoTagRules(ctx context.Context) ([]*hoard.AutoTagRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.pattern, t.name, r.enabled FROM auto_tag_rules r
		 JOIN tags t ON t.id = r.tag_id
		 ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("querying auto-tag rules: %w", err)
	}
	defer rows.Close()

	var rules []*hoard.AutoTagRule
	for rows.Next() {
		rule := &hoard.AutoTagRule{}
		if err := rows.Scan(&rule.ID, &rule.Pattern, &rule.Tag, &rule.Enabled); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SnapshotTo writes a consistent single-file copy of the database. VACUUM INTO
// refuses to overwrite, so the destination must not exist.
func (s *SQLiteStore) SnapshotTo(destPath string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

func (s *SQLiteStore) findOne(ctx context.Context, query string, args ...any) (*hoard.StoredFile, error) {
	file, err := scanFile(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if file.Tags, err = s.TagsForFile(ctx, file.ID); err != nil {
		return nil, err
	}
	return file, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*hoard.StoredFile, error) {
	var (
		file      hoard.StoredFile
		url       sql.NullString
		createdAt time.Time
	)
	err := row.Scan(&file.ID, &url, &file.Source, &file.Filepath, &file.Filename,
		&file.Hash, &file.Size, &file.Metadata, &file.AllowDuplicate, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	file.URL = url.String
	file.CreatedAt = createdAt.UTC()
	return &file, nil
}

// getOrCreateTag returns the id of the tag row with the given name, creating
// it on first use. Lookup is case-insensitive; the stored casing is whatever
// the first insertion used.
func getOrCreateTag(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty tag name")
	}

	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("looking up tag %q: %w", name, err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("creating tag %q: %w", name, err)
	}
	return res.LastInsertId()
}

// nullableString stores empty strings as NULL, so the url unique constraint
// permits any number of URL-less records.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// mapInsertError translates a hash or url uniqueness violation into
// hoard.ErrConflict so callers can follow the duplicate path. All other
// errors pass through unchanged.
func mapInsertError(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) &&
		serr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		(strings.Contains(serr.Error(), "downloads.hash") || strings.Contains(serr.Error(), "downloads.url")) {
		return hoard.ErrConflict
	}
	return fmt.Errorf("inserting record: %w", err)
}

// Compile-time check that SQLiteStore implements hoard.Store
var _ hoard.Store = (*SQLiteStore)(nil)
