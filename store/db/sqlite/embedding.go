package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/store"
)

// Vectors are stored as BLOBs of little-endian float32s. Dimension is not
// enforced at the schema level; mismatched vectors simply score zero.

// float32ArrayToBLOB converts a []float32 to its BLOB encoding.
func float32ArrayToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToFloat32Array converts a BLOB back to a float32 array.
// This is the inverse of float32ArrayToBLOB.
func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid BLOB length: %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// UpsertDocumentEmbedding inserts or updates a document embedding.
func (d *DB) UpsertDocumentEmbedding(ctx context.Context, upsert *store.DocumentEmbedding) error {
	stmt := `
		INSERT INTO document_embedding (document_id, kind, embedding, model, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (document_id, kind) DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			updated_ts = excluded.updated_ts
	`
	_, err := d.db.ExecContext(ctx, stmt,
		upsert.DocumentID,
		upsert.Kind,
		float32ArrayToBLOB(upsert.Embedding),
		upsert.Model,
		upsert.UpdatedTs,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert document embedding")
	}
	return nil
}

// VectorSearch performs cosine similarity search in the application layer.
// The vault is personal-scale, so a full scan over stored embeddings is
// cheaper than maintaining a vector index.
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
		SELECT d.id, d.title, d.body, d.modified_ts, e.embedding
		FROM document d
		INNER JOIN document_embedding e ON e.document_id = d.id
		WHERE e.kind = ?
		ORDER BY d.id
	`
	rows, err := d.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query document embeddings")
	}
	defer rows.Close()

	results := []*store.DocumentWithScore{}
	for rows.Next() {
		var blob []byte
		doc, err := scanDocumentRow(rows, &blob)
		if err != nil {
			return nil, err
		}
		vec, err := blobToFloat32Array(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "bad embedding for document %d", doc.ID)
		}
		results = append(results, &store.DocumentWithScore{
			Document: doc,
			Score:    cosineSimilarity(opts.Vector, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Highest similarity first; equal scores break toward the smaller id for
	// deterministic output.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
