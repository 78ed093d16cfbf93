package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/store"
)

// ReplaceDocumentLinks atomically replaces all outgoing links of a document.
// Called by the sync path after re-parsing a changed document body.
func (d *DB) ReplaceDocumentLinks(ctx context.Context, docID int64, edges []*store.LinkEdge, dangling []*store.DanglingLink) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM link WHERE source_id = ?", docID); err != nil {
		return errors.Wrap(err, "failed to clear links")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dangling_link WHERE source_id = ?", docID); err != nil {
		return errors.Wrap(err, "failed to clear dangling links")
	}

	for _, edge := range edges {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO link (source_id, target_id, weight) VALUES (?, ?, ?)",
			docID, edge.TargetID, edge.Weight,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert link %d -> %d", docID, edge.TargetID)
		}
	}

	for _, dl := range dangling {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO dangling_link (source_id, target) VALUES (?, ?)",
			docID, dl.Target,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert dangling link %d -> %q", docID, dl.Target)
		}
	}

	return tx.Commit()
}

func (d *DB) ListLinks(ctx context.Context) ([]*store.LinkEdge, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT source_id, target_id, weight FROM link ORDER BY source_id, target_id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list links")
	}
	defer rows.Close()
	return scanLinkEdges(rows)
}

func (d *DB) ListDanglingLinks(ctx context.Context) ([]*store.DanglingLink, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT source_id, target FROM dangling_link ORDER BY source_id, target")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list dangling links")
	}
	defer rows.Close()

	list := []*store.DanglingLink{}
	for rows.Next() {
		var dl store.DanglingLink
		if err := rows.Scan(&dl.SourceID, &dl.Target); err != nil {
			return nil, errors.Wrap(err, "failed to scan dangling link")
		}
		list = append(list, &dl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) GetOutlinks(ctx context.Context, docID int64) ([]*store.LinkEdge, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT source_id, target_id, weight FROM link WHERE source_id = ? ORDER BY target_id", docID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get outlinks")
	}
	defer rows.Close()
	return scanLinkEdges(rows)
}

func (d *DB) GetInlinks(ctx context.Context, docID int64) ([]*store.LinkEdge, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT source_id, target_id, weight FROM link WHERE target_id = ? ORDER BY source_id", docID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get inlinks")
	}
	defer rows.Close()
	return scanLinkEdges(rows)
}

func scanLinkEdges(rows *sql.Rows) ([]*store.LinkEdge, error) {
	list := []*store.LinkEdge{}
	for rows.Next() {
		var edge store.LinkEdge
		if err := rows.Scan(&edge.SourceID, &edge.TargetID, &edge.Weight); err != nil {
			return nil, errors.Wrap(err, "failed to scan link edge")
		}
		list = append(list, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
