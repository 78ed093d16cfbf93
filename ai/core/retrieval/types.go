// Package retrieval implements the prompt-context pipeline: seed selection,
// subgraph expansion, feature scoring, authority rerank, budgeted pruning and
// deterministic rendering.
package retrieval

import (
	"context"

	"github.com/hyphora/hyphora/store"
)

// Store is the narrow read surface the pipeline consumes. *store.Store
// satisfies it; tests substitute fakes.
type Store interface {
	GetDocument(ctx context.Context, find *store.FindDocument) (*store.Document, error)
	ListDocuments(ctx context.Context, find *store.FindDocument) ([]*store.Document, error)
	VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.DocumentWithScore, error)
	FTSSearch(ctx context.Context, opts *store.FTSSearchOptions) ([]*store.FTSResult, error)
	ListLinks(ctx context.Context) ([]*store.LinkEdge, error)
	ListDanglingLinks(ctx context.Context) ([]*store.DanglingLink, error)
	Revision() int64
}

// Request is one prompt-context invocation.
type Request struct {
	Prompt string
	// Budget overrides the configured token budget when positive.
	Budget int
}

// Candidate is a fused seed candidate, scoped to one invocation.
type Candidate struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// SeedResult is the seed selection output.
type SeedResult struct {
	// Candidates holds the top seeds sorted by fused score descending,
	// ties broken by smaller doc id.
	Candidates []Candidate
	// PromptVector is nil when embedding was unavailable.
	PromptVector []float32
	// TextScores carries raw text-search relevance per doc id for the
	// text_relevance feature downstream.
	TextScores map[int64]float32

	Degraded       bool
	DegradedReason string
}

// SeedIDs returns the candidate doc ids in fused order.
func (r *SeedResult) SeedIDs() []int64 {
	ids := make([]int64, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.DocID
	}
	return ids
}

// FeatureVector holds per-node signals. All fields except SizeTokens are
// min-max normalized within the current subgraph batch.
type FeatureVector struct {
	SemanticSim   float64
	TextRelevance float64
	HopProximity  float64
	Degree        float64
	Recency       float64
	SizeTokens    int
}

// ScoredNode is a subgraph node carried through scoring and selection.
type ScoredNode struct {
	DocID       int64
	Title       string
	Body        string
	HopDistance int
	Seed        bool
	// SeedScore is the fused seed score, zero for non-seeds.
	SeedScore float64
	// BodyEmbedding is retained for the mmr selection policy.
	BodyEmbedding []float32

	Features       FeatureVector
	BaseScore      float64
	AuthorityScore float64
	FinalScore     float64
}

// ContextItem is one rendered entry of the selected context.
type ContextItem struct {
	DocID      int64   `json:"doc_id"`
	Title      string  `json:"title"`
	Excerpt    string  `json:"excerpt"`
	FinalScore float64 `json:"final_score"`
	Tokens     int     `json:"tokens"`
	Truncated  bool    `json:"truncated"`
}

// SelectedContext is the pipeline output: an ordered, budget-bounded set of
// excerpts plus invocation metadata.
type SelectedContext struct {
	Items []ContextItem `json:"items"`

	RequestID      string `json:"request_id"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	TotalTokens    int    `json:"total_tokens"`
	SeedCount      int    `json:"seed_count"`
	SubgraphNodes  int    `json:"subgraph_nodes"`

	AuthorityIterations int  `json:"authority_iterations"`
	AuthorityConverged  bool `json:"authority_converged"`
}
