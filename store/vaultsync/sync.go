// Package vaultsync mirrors a directory of markdown notes into the store:
// inserts, updates and deletes by modification time, then rebuilds the link
// table and bumps the snapshot revision.
package vaultsync

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/graph"
	"github.com/hyphora/hyphora/store"
)

// Stats reports what one sync run changed.
type Stats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
	Edges    int `json:"edges"`
	Dangling int `json:"dangling"`
}

// Changed reports whether the run modified the store.
func (s *Stats) Changed() bool {
	return s.Inserted+s.Updated+s.Deleted > 0
}

// Syncer synchronizes a vault directory with the store.
type Syncer struct {
	store    *store.Store
	embedder ai.EmbeddingService
	logger   *slog.Logger
}

// New creates a Syncer. embedder may be nil-safe unavailable; documents are
// then stored without vectors and retrieval degrades to text-only.
func New(s *store.Store, embedder ai.EmbeddingService, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:    s,
		embedder: embedder,
		logger:   logger,
	}
}

type vaultFile struct {
	title      string
	path       string
	modifiedTs int64
}

// Sync walks vaultPath for markdown files and reconciles them with the
// store. The document title is the file's vault-relative path without the
// .md extension.
func (s *Syncer) Sync(ctx context.Context, vaultPath string) (*Stats, error) {
	files, err := scanVault(vaultPath)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListDocuments(ctx, &store.FindDocument{})
	if err != nil {
		return nil, err
	}
	byTitle := make(map[string]*store.Document, len(existing))
	for _, doc := range existing {
		byTitle[doc.Title] = doc
	}

	stats := &Stats{}
	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		seen[file.title] = struct{}{}

		doc := byTitle[file.title]
		if doc != nil && doc.ModifiedTs == file.modifiedTs {
			continue
		}

		raw, err := os.ReadFile(file.path)
		if err != nil {
			return nil, err
		}
		body := string(raw)

		if doc == nil {
			doc, err = s.store.CreateDocument(ctx, &store.Document{
				Title:      file.title,
				Body:       body,
				ModifiedTs: file.modifiedTs,
			})
			if err != nil {
				return nil, err
			}
			stats.Inserted++
		} else {
			err = s.store.UpdateDocument(ctx, &store.UpdateDocument{
				ID:         doc.ID,
				Body:       &body,
				ModifiedTs: &file.modifiedTs,
			})
			if err != nil {
				return nil, err
			}
			stats.Updated++
		}
		s.embedDocument(ctx, doc.ID, file.title, body)
	}

	for _, doc := range existing {
		if _, ok := seen[doc.Title]; ok {
			continue
		}
		if err := s.store.DeleteDocument(ctx, &store.DeleteDocument{ID: doc.ID}); err != nil {
			return nil, err
		}
		stats.Deleted++
	}

	if stats.Changed() {
		if err := s.relink(ctx, stats); err != nil {
			return nil, err
		}
		if stats.Deleted > 0 {
			if err := s.store.Vacuum(ctx); err != nil {
				s.logger.WarnContext(ctx, "vacuum failed", "error", err)
			}
		}
		revision := s.store.BumpRevision()
		s.logger.InfoContext(ctx, "vault synced",
			"inserted", stats.Inserted,
			"updated", stats.Updated,
			"deleted", stats.Deleted,
			"edges", stats.Edges,
			"dangling", stats.Dangling,
			"revision", revision)
	}
	return stats, nil
}

// relink rebuilds the whole link table. Title resolution needs every title,
// so a full rebuild is simpler and safer than per-document patching.
func (s *Syncer) relink(ctx context.Context, stats *Stats) error {
	docs, err := s.store.ListDocuments(ctx, &store.FindDocument{})
	if err != nil {
		return err
	}

	builder := graph.NewBuilder()
	for _, doc := range docs {
		builder.AddDocument(doc.ID, doc.Title)
	}
	for _, doc := range docs {
		builder.AddBody(doc.ID, doc.Body)
	}
	edges, dangling := builder.Resolve()
	stats.Edges = len(edges)
	stats.Dangling = len(dangling)

	bySource := make(map[int64][]*store.LinkEdge)
	for _, e := range edges {
		bySource[e.Source] = append(bySource[e.Source], &store.LinkEdge{
			SourceID: e.Source,
			TargetID: e.Target,
			Weight:   e.Weight,
		})
	}
	danglingBySource := make(map[int64][]*store.DanglingLink)
	for _, d := range dangling {
		danglingBySource[d.SourceID] = append(danglingBySource[d.SourceID], &store.DanglingLink{
			SourceID: d.SourceID,
			Target:   d.Target,
		})
	}

	for _, doc := range docs {
		err := s.store.ReplaceDocumentLinks(ctx, doc.ID, bySource[doc.ID], danglingBySource[doc.ID])
		if err != nil {
			return err
		}
	}
	return nil
}

// embedDocument stores title and body vectors for one document. Embedding
// failures are logged and skipped; retrieval degrades instead of sync
// failing.
func (s *Syncer) embedDocument(ctx context.Context, docID int64, title, body string) {
	if s.embedder == nil {
		return
	}
	vectors, err := s.embedder.EmbedBatch(ctx, []string{title, body})
	if err != nil {
		if !errors.Is(err, ai.ErrEmbeddingUnavailable) {
			s.logger.WarnContext(ctx, "embed document failed",
				"doc_id", docID, "error", err)
		}
		return
	}
	if len(vectors) != 2 {
		return
	}

	kinds := []store.EmbeddingKind{store.EmbeddingKindTitle, store.EmbeddingKindBody}
	for i, kind := range kinds {
		err := s.store.UpsertDocumentEmbedding(ctx, &store.DocumentEmbedding{
			DocumentID: docID,
			Kind:       kind,
			Embedding:  vectors[i],
		})
		if err != nil {
			s.logger.WarnContext(ctx, "store embedding failed",
				"doc_id", docID, "kind", string(kind), "error", err)
		}
	}
}

// scanVault lists markdown files under root, sorted by WalkDir's lexical
// order so sync runs are deterministic.
func scanVault(root string) ([]vaultFile, error) {
	var files []vaultFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories like .obsidian or .git.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		title := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
		files = append(files, vaultFile{
			title:      title,
			path:       path,
			modifiedTs: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
