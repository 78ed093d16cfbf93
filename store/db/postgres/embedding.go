package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/store"
)

// UpsertDocumentEmbedding inserts or updates a document embedding.
func (d *DB) UpsertDocumentEmbedding(ctx context.Context, upsert *store.DocumentEmbedding) error {
	stmt := `
		INSERT INTO document_embedding (document_id, kind, embedding, model, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (document_id, kind)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_ts = EXCLUDED.updated_ts
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.DocumentID,
		upsert.Kind,
		pgvector.NewVector(upsert.Embedding),
		upsert.Model,
		upsert.UpdatedTs,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert document embedding")
	}
	return nil
}

// VectorSearch performs cosine similarity search using pgvector.
// The <=> operator returns cosine distance; similarity = 1 - distance.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	kind := opts.Kind
	if kind == "" {
		kind = store.EmbeddingKindBody
	}

	query := `
		SELECT d.id, d.title, d.body, d.modified_ts,
			1 - (e.embedding <=> $1) AS similarity
		FROM document d
		INNER JOIN document_embedding e ON e.document_id = d.id
		WHERE e.kind = $2
		ORDER BY similarity DESC, d.id
		LIMIT $3
	`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(opts.Vector), string(kind), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run vector search")
	}
	defer rows.Close()

	results := []*store.DocumentWithScore{}
	for rows.Next() {
		var doc store.Document
		var score float32
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedTs, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		results = append(results, &store.DocumentWithScore{Document: &doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// FTSSearch performs full-text search using the generated tsvector column.
func (d *DB) FTSSearch(ctx context.Context, opts *store.FTSSearchOptions) ([]*store.FTSResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT d.id, d.title, d.body, d.modified_ts,
			ts_rank(d.body_tsv, plainto_tsquery('english', $1)) AS score
		FROM document d
		WHERE d.body_tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC, d.id
		LIMIT $2
	`

	rows, err := d.db.QueryContext(ctx, query, opts.Query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run full-text search")
	}
	defer rows.Close()

	results := []*store.FTSResult{}
	for rows.Next() {
		var doc store.Document
		var score float32
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body, &doc.ModifiedTs, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan full-text search result")
		}
		if score >= opts.MinScore {
			results = append(results, &store.FTSResult{Document: &doc, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
