package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/store"
)

func (d *DB) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	stmt := `
		INSERT INTO document (title, body, modified_ts)
		VALUES (?, ?, ?)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt, create.Title, create.Body, create.ModifiedTs).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create document")
	}
	return create, nil
}

func (d *DB) UpdateDocument(ctx context.Context, update *store.UpdateDocument) error {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = ?"), append(args, *update.Title)
	}
	if update.Body != nil {
		set, args = append(set, "body = ?"), append(args, *update.Body)
	}
	if update.ModifiedTs != nil {
		set, args = append(set, "modified_ts = ?"), append(args, *update.ModifiedTs)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, update.ID)

	stmt := "UPDATE document SET " + strings.Join(set, ", ") + " WHERE id = ?"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update document")
	}
	return nil
}

func (d *DB) DeleteDocument(ctx context.Context, delete *store.DeleteDocument) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM document WHERE id = ?", delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete document")
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM document_embedding WHERE document_id = ?", delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete document embeddings")
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM link WHERE source_id = ? OR target_id = ?", delete.ID, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete document links")
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM dangling_link WHERE source_id = ?", delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete dangling links")
	}
	return nil
}

func (d *DB) GetDocument(ctx context.Context, find *store.FindDocument) (*store.Document, error) {
	list, err := d.ListDocuments(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrNotFound
	}
	return list[0], nil
}

func (d *DB) ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "d.id = ?"), append(args, *find.ID)
	}
	if find.Title != nil {
		where, args = append(where, "d.title = ?"), append(args, *find.Title)
	}
	if find.TitleFold != nil {
		where, args = append(where, "d.title = ? COLLATE NOCASE"), append(args, *find.TitleFold)
	}

	bodyColumn := "d.body"
	if find.ExcludeBody {
		bodyColumn = "''"
	}

	fields := []string{"d.id", "d.title", bodyColumn, "d.modified_ts"}
	joins := ""
	if find.WithEmbeddings {
		fields = append(fields, "te.embedding", "be.embedding")
		joins = `
			LEFT JOIN document_embedding te ON te.document_id = d.id AND te.kind = 'title'
			LEFT JOIN document_embedding be ON be.document_id = d.id AND be.kind = 'body'`
	}

	query := "SELECT " + strings.Join(fields, ", ") + " FROM document d" + joins +
		" WHERE " + strings.Join(where, " AND ") + " ORDER BY d.id"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list documents")
	}
	defer rows.Close()

	list := []*store.Document{}
	for rows.Next() {
		var doc store.Document
		dests := []any{&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedTs}
		var titleBlob, bodyBlob []byte
		if find.WithEmbeddings {
			dests = append(dests, &titleBlob, &bodyBlob)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		if find.WithEmbeddings {
			if len(titleBlob) > 0 {
				vec, err := blobToFloat32Array(titleBlob)
				if err != nil {
					return nil, errors.Wrapf(err, "bad title embedding for document %d", doc.ID)
				}
				doc.TitleEmbedding = vec
			}
			if len(bodyBlob) > 0 {
				vec, err := blobToFloat32Array(bodyBlob)
				if err != nil {
					return nil, errors.Wrapf(err, "bad body embedding for document %d", doc.ID)
				}
				doc.BodyEmbedding = vec
			}
		}
		list = append(list, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// scanDocumentRow scans the standard document columns from a search query row.
func scanDocumentRow(rows *sql.Rows, extra ...any) (*store.Document, error) {
	var doc store.Document
	dests := append([]any{&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedTs}, extra...)
	if err := rows.Scan(dests...); err != nil {
		return nil, errors.Wrap(err, "failed to scan document")
	}
	return &doc, nil
}
