package retrieval

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/store"
)

type fakeStore struct {
	docs     map[int64]*store.Document
	links    []*store.LinkEdge
	dangling []*store.DanglingLink
	revision int64

	missing   map[int64]bool
	vectorErr error
	ftsErr    error
}

func (f *fakeStore) GetDocument(_ context.Context, find *store.FindDocument) (*store.Document, error) {
	if find.ID == nil {
		return nil, store.ErrNotFound
	}
	if f.missing[*find.ID] {
		return nil, store.ErrNotFound
	}
	doc, ok := f.docs[*find.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) ListDocuments(context.Context, *store.FindDocument) ([]*store.Document, error) {
	docs := make([]*store.Document, 0, len(f.docs))
	for id, doc := range f.docs {
		if f.missing[id] {
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (f *fakeStore) VectorSearch(_ context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithScore, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	results := []*store.DocumentWithScore{}
	for _, doc := range f.docs {
		if doc.BodyEmbedding == nil {
			continue
		}
		score := float32(cosineSimilarity(opts.Vector, doc.BodyEmbedding))
		results = append(results, &store.DocumentWithScore{Document: doc, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (f *fakeStore) FTSSearch(_ context.Context, opts *store.FTSSearchOptions) ([]*store.FTSResult, error) {
	if f.ftsErr != nil {
		return nil, f.ftsErr
	}
	terms := queryTerms(opts.Query)
	results := []*store.FTSResult{}
	for _, doc := range f.docs {
		var hits int
		for _, term := range terms {
			hits += countInsensitive(doc.Title+" "+doc.Body, term)
		}
		if hits > 0 {
			results = append(results, &store.FTSResult{Document: doc, Score: float32(hits)})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (f *fakeStore) ListLinks(context.Context) ([]*store.LinkEdge, error) {
	return f.links, nil
}

func (f *fakeStore) ListDanglingLinks(context.Context) ([]*store.DanglingLink, error) {
	return f.dangling, nil
}

func (f *fakeStore) Revision() int64 {
	return f.revision
}

func countInsensitive(haystack, needle string) int {
	var count int
	lower := []byte(haystack)
	for i := range lower {
		c := lower[i]
		if c >= 'A' && c <= 'Z' {
			lower[i] = c + 32
		}
	}
	h := string(lower)
	for i := 0; i+len(needle) <= len(h); i++ {
		if h[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = f.vector
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return len(f.vector)
}

// chainVault builds the A->B->C chain with isolated D and E. The prompt
// vector matches A strongly and C weakly; the word "alpha" appears only in
// A's body.
func chainVault(now time.Time) *fakeStore {
	recent := now.Unix()
	old := now.Add(-300 * 24 * time.Hour).Unix()
	return &fakeStore{
		docs: map[int64]*store.Document{
			1: {ID: 1, Title: "Alpha", Body: "alpha retrieval pipeline notes", BodyEmbedding: []float32{1, 0}, ModifiedTs: recent},
			2: {ID: 2, Title: "Beta", Body: "bridge note between topics", BodyEmbedding: []float32{0, 1}, ModifiedTs: recent},
			3: {ID: 3, Title: "Gamma", Body: "older related material", BodyEmbedding: []float32{0.2, 0.98}, ModifiedTs: old},
			4: {ID: 4, Title: "Delta", Body: "isolated island one", ModifiedTs: recent},
			5: {ID: 5, Title: "Epsilon", Body: "isolated island two", ModifiedTs: recent},
		},
		links: []*store.LinkEdge{
			{SourceID: 1, TargetID: 2, Weight: 1},
			{SourceID: 2, TargetID: 3, Weight: 1},
		},
		revision: 1,
		missing:  map[int64]bool{},
	}
}

func chainConfig() *ai.Config {
	cfg := ai.DefaultConfig()
	cfg.Seed.SeedCount = 2
	cfg.Expand.MaxHops = 1
	// The A-B-C chain is bipartite, so propagation error decays only by the
	// damping factor per iteration; give it room to actually converge.
	cfg.Authority.MaxIterations = 100
	return cfg
}

func chainPipeline(fs *fakeStore, embedder ai.EmbeddingService, now time.Time) *Pipeline {
	return NewPipeline(Options{
		Store:    fs,
		Embedder: embedder,
		Config:   chainConfig(),
		Now:      func() time.Time { return now },
	})
}

func TestPipelineChainScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval"})
	require.NoError(t, err)
	require.Len(t, sc.Items, 3)

	// Seeds are A and C; hop-1 expansion pulls in the bridge B; D and E
	// never appear.
	assert.Equal(t, int64(1), sc.Items[0].DocID, "the strong seed leads")
	assert.Equal(t, int64(2), sc.Items[1].DocID, "the bridge fed by both seeds outranks the weak seed")
	assert.Equal(t, int64(3), sc.Items[2].DocID)

	assert.Equal(t, 2, sc.SeedCount)
	assert.Equal(t, 3, sc.SubgraphNodes)
	assert.False(t, sc.Degraded)
	assert.True(t, sc.AuthorityConverged)
	assert.LessOrEqual(t, sc.TotalTokens, p.cfg.Select.TokenBudget)
}

func TestPipelineDeterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	ctx := context.Background()
	first, err := p.BuildContext(ctx, &Request{Prompt: "alpha retrieval"})
	require.NoError(t, err)
	rendered := Render(first)

	for i := 0; i < 5; i++ {
		sc, err := p.BuildContext(ctx, &Request{Prompt: "alpha retrieval"})
		require.NoError(t, err)
		assert.Equal(t, rendered, Render(sc), "identical inputs must render byte-identically")
	}
}

func TestPipelineEmptyVault(t *testing.T) {
	now := time.Now()
	fs := &fakeStore{docs: map[int64]*store.Document{}, missing: map[int64]bool{}}
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "anything"})
	require.NoError(t, err)
	assert.Empty(t, sc.Items, "empty vault yields an empty context, not an error")
}

func TestPipelineEmbeddingUnavailable(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	p := chainPipeline(fs, &fakeEmbedder{err: ai.ErrEmbeddingUnavailable}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval"})
	require.NoError(t, err)
	assert.True(t, sc.Degraded)
	assert.Equal(t, DegradedEmbeddingUnavailable, sc.DegradedReason)
	// Text search still finds A.
	require.NotEmpty(t, sc.Items)
	assert.Equal(t, int64(1), sc.Items[0].DocID)
}

func TestPipelineVectorSearchFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	fs.vectorErr = errors.New("index offline")
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval"})
	require.NoError(t, err)
	assert.True(t, sc.Degraded)
	assert.Equal(t, DegradedVectorSearchFailed, sc.DegradedReason)
	require.NotEmpty(t, sc.Items)
}

func TestPipelineBothSearchesFail(t *testing.T) {
	now := time.Now()
	fs := chainVault(now)
	fs.vectorErr = errors.New("index offline")
	fs.ftsErr = errors.New("fts offline")
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	_, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval"})
	require.Error(t, err, "total search unavailability is terminal")
}

func TestPipelineSkipsDeletedDocument(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	// B vanishes between snapshot and feature extraction.
	fs.missing[2] = true

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval"})
	require.NoError(t, err)
	for _, item := range sc.Items {
		assert.NotEqual(t, int64(2), item.DocID, "deleted documents are skipped, not fatal")
	}
	require.NotEmpty(t, sc.Items)
}

func TestPipelineForcedTruncation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	p := chainPipeline(fs, &fakeEmbedder{vector: []float32{1, 0}}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "alpha retrieval", Budget: 2})
	require.NoError(t, err)
	require.Len(t, sc.Items, 1, "a budget below every candidate forces a single truncated node")
	assert.True(t, sc.Items[0].Truncated)
	assert.LessOrEqual(t, sc.Items[0].Tokens, 2)
}

func TestPipelineRecencyFallbackSeeds(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fs := chainVault(now)
	// No embeddings and a prompt matching nothing: both methods come back
	// empty, the pipeline falls back to recent documents.
	p := chainPipeline(fs, &fakeEmbedder{err: ai.ErrEmbeddingUnavailable}, now)

	sc, err := p.BuildContext(context.Background(), &Request{Prompt: "zzz qqq xxx"})
	require.NoError(t, err)
	assert.NotEmpty(t, sc.Items, "a non-empty vault must yield a non-empty context")
}
