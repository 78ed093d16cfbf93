package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/hyphora/hyphora/store"
)

// FTSSearch performs full-text search using SQLite FTS5.
// bm25() returns lower-is-better values, so the score is negated to make
// higher mean more relevant, matching the vector search convention.
func (d *DB) FTSSearch(ctx context.Context, opts *store.FTSSearchOptions) ([]*store.FTSResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT d.id, d.title, d.body, d.modified_ts, -bm25(document_fts) AS score
		FROM document_fts
		JOIN document d ON d.id = document_fts.rowid
		WHERE document_fts MATCH ?
		ORDER BY score DESC, d.id
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, opts.Query, limit)
	if err != nil {
		// FTS5 may be unavailable or the query malformed; fall back to a
		// term-count scan rather than failing the whole search.
		return d.ftsSearchFallback(ctx, opts)
	}
	defer rows.Close()

	results := []*store.FTSResult{}
	for rows.Next() {
		var score float32
		doc, err := scanDocumentRow(rows, &score)
		if err != nil {
			return nil, err
		}
		if score >= opts.MinScore {
			results = append(results, &store.FTSResult{Document: doc, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ftsSearchFallback scans document bodies and counts term hits. Slow, but
// keeps text search functional when FTS5 is not compiled in.
func (d *DB) ftsSearchFallback(ctx context.Context, opts *store.FTSSearchOptions) ([]*store.FTSResult, error) {
	docs, err := d.ListDocuments(ctx, &store.FindDocument{})
	if err != nil {
		return nil, err
	}

	terms := []string{}
	for _, term := range strings.Fields(strings.ToLower(opts.Query)) {
		term = strings.Trim(term, `"`)
		if term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return []*store.FTSResult{}, nil
	}

	results := []*store.FTSResult{}
	for _, doc := range docs {
		text := strings.ToLower(doc.Title + " " + doc.Body)
		var hits int
		for _, term := range terms {
			hits += strings.Count(text, term)
		}
		if hits == 0 {
			continue
		}
		score := float32(hits)
		if score >= opts.MinScore {
			results = append(results, &store.FTSResult{Document: doc, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
