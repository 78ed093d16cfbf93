package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hyphora/hyphora/internal/profile"
	"github.com/hyphora/hyphora/internal/version"
	"github.com/hyphora/hyphora/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: it's currently disabled by default, but it's a
	// good practice to be explicit and prevent future surprises on SQLite upgrades.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	//
	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	//
	// References:
	// - https://pkg.go.dev/modernc.org/sqlite#Driver.Open
	// - https://www.sqlite.org/pragma.html
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite handles concurrency differently; a single connection with WAL is
	// optimal for a personal vault.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Vacuum deletes rows that reference documents which no longer exist, then
// compacts the database file.
func (d *DB) Vacuum(ctx context.Context) error {
	stmts := []string{
		`DELETE FROM document_embedding WHERE document_id NOT IN (SELECT id FROM document)`,
		`DELETE FROM link WHERE source_id NOT IN (SELECT id FROM document) OR target_id NOT IN (SELECT id FROM document)`,
		`DELETE FROM dangling_link WHERE source_id NOT IN (SELECT id FROM document)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to delete orphaned rows")
		}
	}
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return errors.Wrap(err, "failed to vacuum")
	}
	return nil
}

// Migrate applies the latest schema. All statements are idempotent so the
// call is safe on every startup.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	return d.checkVersion(ctx)
}

// checkVersion refuses a database written by a newer minor version and
// records the current one, matching on minor because patch releases never
// change the schema.
func (d *DB) checkVersion(ctx context.Context) error {
	current := version.GetMinorVersion(version.GetCurrentVersion(d.profile.Mode))

	var stored string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM system_setting WHERE name = 'schema_version'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "failed to read schema version")
	}
	if stored != "" && !version.IsVersionGreaterOrEqualThan(current, stored) {
		return errors.Errorf("database schema version %s is newer than binary version %s", stored, current)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO system_setting (name, value) VALUES ('schema_version', ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`, current)
	return errors.Wrap(err, "failed to record schema version")
}

const latestSchema = `
CREATE TABLE IF NOT EXISTS system_setting (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	body TEXT NOT NULL DEFAULT '',
	modified_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_title_nocase ON document (title COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS document_embedding (
	document_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	embedding BLOB NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	updated_ts BIGINT NOT NULL,
	PRIMARY KEY (document_id, kind)
);

CREATE TABLE IF NOT EXISTS link (
	source_id INTEGER NOT NULL,
	target_id INTEGER NOT NULL,
	weight INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_link_target ON link (target_id);

CREATE TABLE IF NOT EXISTS dangling_link (
	source_id INTEGER NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (source_id, target)
);

CREATE VIRTUAL TABLE IF NOT EXISTS document_fts USING fts5(
	title,
	body,
	content='document',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS document_fts_insert AFTER INSERT ON document BEGIN
	INSERT INTO document_fts (rowid, title, body) VALUES (new.id, new.title, new.body);
END;

CREATE TRIGGER IF NOT EXISTS document_fts_delete AFTER DELETE ON document BEGIN
	INSERT INTO document_fts (document_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
END;

CREATE TRIGGER IF NOT EXISTS document_fts_update AFTER UPDATE ON document BEGIN
	INSERT INTO document_fts (document_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
	INSERT INTO document_fts (rowid, title, body) VALUES (new.id, new.title, new.body);
END;
`
