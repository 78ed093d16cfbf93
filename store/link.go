package store

import "context"

// LinkEdge is a resolved wiki-link between two documents. Weight counts the
// distinct link occurrences of the target within the source body.
type LinkEdge struct {
	SourceID int64
	TargetID int64
	Weight   int
}

// DanglingLink is a wiki-link whose target title resolved to no document.
// Dangling links are excluded from the traversable graph and surface only in
// statistics.
type DanglingLink struct {
	SourceID int64
	Target   string
}

// LinkStats summarizes the stored link graph.
type LinkStats struct {
	DocumentCount int
	EdgeCount     int
	DanglingCount int
}

func (s *Store) ReplaceDocumentLinks(ctx context.Context, docID int64, edges []*LinkEdge, dangling []*DanglingLink) error {
	return s.driver.ReplaceDocumentLinks(ctx, docID, edges, dangling)
}

func (s *Store) ListLinks(ctx context.Context) ([]*LinkEdge, error) {
	return s.driver.ListLinks(ctx)
}

func (s *Store) ListDanglingLinks(ctx context.Context) ([]*DanglingLink, error) {
	return s.driver.ListDanglingLinks(ctx)
}

func (s *Store) GetOutlinks(ctx context.Context, docID int64) ([]*LinkEdge, error) {
	return s.driver.GetOutlinks(ctx, docID)
}

func (s *Store) GetInlinks(ctx context.Context, docID int64) ([]*LinkEdge, error) {
	return s.driver.GetInlinks(ctx, docID)
}

// GetLinkStats reports node/edge/dangling counts for the stats endpoint.
func (s *Store) GetLinkStats(ctx context.Context) (*LinkStats, error) {
	docs, err := s.driver.ListDocuments(ctx, &FindDocument{ExcludeBody: true})
	if err != nil {
		return nil, err
	}
	edges, err := s.driver.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	dangling, err := s.driver.ListDanglingLinks(ctx)
	if err != nil {
		return nil, err
	}
	return &LinkStats{
		DocumentCount: len(docs),
		EdgeCount:     len(edges),
		DanglingCount: len(dangling),
	}, nil
}
