package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error

	// Document model related methods.
	CreateDocument(ctx context.Context, create *Document) (*Document, error)
	UpdateDocument(ctx context.Context, update *UpdateDocument) error
	DeleteDocument(ctx context.Context, delete *DeleteDocument) error
	GetDocument(ctx context.Context, find *FindDocument) (*Document, error)
	ListDocuments(ctx context.Context, find *FindDocument) ([]*Document, error)

	// Embedding related methods.
	UpsertDocumentEmbedding(ctx context.Context, upsert *DocumentEmbedding) error

	// Search related methods.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*DocumentWithScore, error)
	FTSSearch(ctx context.Context, opts *FTSSearchOptions) ([]*FTSResult, error)

	// Link graph related methods.
	ReplaceDocumentLinks(ctx context.Context, docID int64, edges []*LinkEdge, dangling []*DanglingLink) error
	ListLinks(ctx context.Context) ([]*LinkEdge, error)
	ListDanglingLinks(ctx context.Context) ([]*DanglingLink, error)
	GetOutlinks(ctx context.Context, docID int64) ([]*LinkEdge, error)
	GetInlinks(ctx context.Context, docID int64) ([]*LinkEdge, error)
}
