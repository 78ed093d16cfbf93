package store

import "context"

// EmbeddingKind identifies which field of a document a vector was computed from.
type EmbeddingKind string

const (
	EmbeddingKindTitle EmbeddingKind = "title"
	EmbeddingKindBody  EmbeddingKind = "body"
)

// Document is a single markdown note from the vault.
// The retrieval core holds read-only snapshots of these; only the sync path
// mutates them.
type Document struct {
	ID    int64
	Title string
	Body  string

	// Embeddings are loaded only when FindDocument.WithEmbeddings is set.
	// Either may be nil when the document has not been embedded yet.
	TitleEmbedding []float32
	BodyEmbedding  []float32

	ModifiedTs int64
}

// DocumentWithScore is a vector search hit with its cosine similarity.
type DocumentWithScore struct {
	Document *Document
	Score    float32
}

// FTSResult is a full-text search hit with its relevance score.
type FTSResult struct {
	Document *Document
	Score    float32
}

// DocumentEmbedding is a stored vector for one field of a document.
type DocumentEmbedding struct {
	DocumentID int64
	Kind       EmbeddingKind
	Embedding  []float32
	Model      string
	UpdatedTs  int64
}

// FindDocument specifies document lookup criteria.
type FindDocument struct {
	ID *int64
	// Title matches exactly (case-sensitive).
	Title *string
	// TitleFold matches case-insensitively; used for wiki-link resolution.
	TitleFold *string
	// WithEmbeddings also loads title/body embeddings.
	WithEmbeddings bool
	// ExcludeBody skips loading the body column (graph rebuilds only need
	// id/title/modified_ts).
	ExcludeBody bool
}

// UpdateDocument specifies fields to update on a document.
type UpdateDocument struct {
	ID         int64
	Title      *string
	Body       *string
	ModifiedTs *int64
}

// DeleteDocument specifies a document to delete. Embeddings and links are
// removed with it.
type DeleteDocument struct {
	ID int64
}

// VectorSearchOptions configures a vector similarity search.
type VectorSearchOptions struct {
	Vector []float32
	Limit  int
	// Kind restricts the search to title or body embeddings. Defaults to body.
	Kind EmbeddingKind
}

// FTSSearchOptions configures a full-text search.
type FTSSearchOptions struct {
	Query    string
	Limit    int
	MinScore float32
}

func (s *Store) CreateDocument(ctx context.Context, create *Document) (*Document, error) {
	doc, err := s.driver.CreateDocument(ctx, create)
	if err != nil {
		return nil, err
	}
	s.documentCache.Purge()
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, update *UpdateDocument) error {
	if err := s.driver.UpdateDocument(ctx, update); err != nil {
		return err
	}
	s.documentCache.Remove(update.ID)
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, delete *DeleteDocument) error {
	if err := s.driver.DeleteDocument(ctx, delete); err != nil {
		return err
	}
	s.documentCache.Remove(delete.ID)
	return nil
}

// GetDocument fetches one document. Returns ErrNotFound when no document
// matches, which the retrieval pipeline treats as a skippable condition.
func (s *Store) GetDocument(ctx context.Context, find *FindDocument) (*Document, error) {
	// Only plain by-ID lookups go through the cache; embedding loads bypass it
	// to keep cached entries small.
	cacheable := find.ID != nil && !find.WithEmbeddings && !find.ExcludeBody && find.Title == nil && find.TitleFold == nil
	if cacheable {
		if doc, ok := s.documentCache.Get(*find.ID); ok {
			return doc, nil
		}
	}

	doc, err := s.driver.GetDocument(ctx, find)
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.documentCache.Set(doc.ID, doc)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error) {
	return s.driver.ListDocuments(ctx, find)
}

func (s *Store) UpsertDocumentEmbedding(ctx context.Context, upsert *DocumentEmbedding) error {
	return s.driver.UpsertDocumentEmbedding(ctx, upsert)
}

func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithScore, error) {
	return s.driver.VectorSearch(ctx, opts)
}

func (s *Store) FTSSearch(ctx context.Context, opts *FTSSearchOptions) ([]*FTSResult, error) {
	return s.driver.FTSSearch(ctx, opts)
}
