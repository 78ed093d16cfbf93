package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/store"
)

func (d *DB) CreateDocument(ctx context.Context, create *store.Document) (*store.Document, error) {
	stmt := `
		INSERT INTO document (title, body, modified_ts)
		VALUES (` + placeholders(3) + `)
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
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.Body != nil {
		set, args = append(set, "body = "+placeholder(len(args)+1)), append(args, *update.Body)
	}
	if update.ModifiedTs != nil {
		set, args = append(set, "modified_ts = "+placeholder(len(args)+1)), append(args, *update.ModifiedTs)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, update.ID)

	stmt := "UPDATE document SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update document")
	}
	return nil
}

func (d *DB) DeleteDocument(ctx context.Context, delete *store.DeleteDocument) error {
	stmts := []string{
		"DELETE FROM document WHERE id = $1",
		"DELETE FROM document_embedding WHERE document_id = $1",
		"DELETE FROM link WHERE source_id = $1 OR target_id = $1",
		"DELETE FROM dangling_link WHERE source_id = $1",
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt, delete.ID); err != nil {
			return errors.Wrap(err, "failed to delete document")
		}
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
		where, args = append(where, "d.id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Title != nil {
		where, args = append(where, "d.title = "+placeholder(len(args)+1)), append(args, *find.Title)
	}
	if find.TitleFold != nil {
		where, args = append(where, "LOWER(d.title) = LOWER("+placeholder(len(args)+1)+")"), append(args, *find.TitleFold)
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
		var titleVec, bodyVec nullableVector
		if find.WithEmbeddings {
			dests = append(dests, &titleVec, &bodyVec)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		if find.WithEmbeddings {
			doc.TitleEmbedding = titleVec.slice()
			doc.BodyEmbedding = bodyVec.slice()
		}
		list = append(list, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// nullableVector scans a pgvector column that may be NULL.
type nullableVector struct {
	vec   pgvector.Vector
	valid bool
}

func (v *nullableVector) Scan(src any) error {
	if src == nil {
		v.valid = false
		return nil
	}
	if err := v.vec.Scan(src); err != nil {
		return err
	}
	v.valid = true
	return nil
}

func (v *nullableVector) slice() []float32 {
	if !v.valid {
		return nil
	}
	return v.vec.Slice()
}

var _ sql.Scanner = (*nullableVector)(nil)
