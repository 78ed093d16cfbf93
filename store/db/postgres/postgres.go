package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the Postgres driver.
	_ "github.com/lib/pq"

	"github.com/hyphora/hyphora/internal/profile"
	"github.com/hyphora/hyphora/internal/version"
	"github.com/hyphora/hyphora/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a Postgres database using the DSN from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Vacuum deletes rows that reference documents which no longer exist.
// Postgres reclaims space through autovacuum, so no explicit VACUUM runs.
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
	return nil
}

// Migrate applies the latest schema. The pgvector extension must be
// installed on the server; vector columns use the profile's dimension.
func (d *DB) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(latestSchema, d.profile.EmbeddingDimensions)
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
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
		INSERT INTO system_setting (name, value) VALUES ('schema_version', $1)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`, current)
	return errors.Wrap(err, "failed to record schema version")
}

const latestSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS system_setting (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL UNIQUE,
	body TEXT NOT NULL DEFAULT '',
	modified_ts BIGINT NOT NULL,
	body_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', title || ' ' || body)) STORED
);

CREATE INDEX IF NOT EXISTS idx_document_body_tsv ON document USING GIN (body_tsv);
CREATE INDEX IF NOT EXISTS idx_document_title_lower ON document (LOWER(title));

CREATE TABLE IF NOT EXISTS document_embedding (
	document_id BIGINT NOT NULL,
	kind TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	updated_ts BIGINT NOT NULL,
	PRIMARY KEY (document_id, kind)
);

CREATE TABLE IF NOT EXISTS link (
	source_id BIGINT NOT NULL,
	target_id BIGINT NOT NULL,
	weight INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_link_target ON link (target_id);

CREATE TABLE IF NOT EXISTS dangling_link (
	source_id BIGINT NOT NULL,
	target TEXT NOT NULL,
	PRIMARY KEY (source_id, target)
);
`

// placeholder returns a positional parameter like $1.
func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

// placeholders returns a comma-joined parameter list like $1, $2, $3.
func placeholders(n int) string {
	list := []string{}
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}
