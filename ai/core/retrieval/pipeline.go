package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/ai/metrics"
	"github.com/hyphora/hyphora/graph"
	"github.com/hyphora/hyphora/store"
)

// Pipeline wires the retrieval stages. It is stateless per invocation; many
// requests may run concurrently against the shared store snapshot and cached
// link graph.
type Pipeline struct {
	store    Store
	embedder ai.EmbeddingService
	cfg      *ai.Config
	graphs   *graph.Cache
	metrics  *metrics.PrometheusExporter
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures a Pipeline.
type Options struct {
	Store    Store
	Embedder ai.EmbeddingService
	Config   *ai.Config
	// Metrics is optional.
	Metrics *metrics.PrometheusExporter
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now overrides the clock, for reproducible recency in tests.
	Now func() time.Time
}

// NewPipeline creates a new retrieval pipeline.
func NewPipeline(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg == nil {
		cfg = ai.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		store:    opts.Store,
		embedder: opts.Embedder,
		cfg:      cfg,
		graphs:   graph.NewCache(),
		metrics:  opts.Metrics,
		logger:   logger,
		now:      now,
	}
}

// Config returns the pipeline's tuning configuration.
func (p *Pipeline) Config() *ai.Config {
	return p.cfg
}

// GraphSnapshot returns the link graph for the current vault revision,
// rebuilding it when the sync path has bumped the revision.
func (p *Pipeline) GraphSnapshot(ctx context.Context) (*graph.Snapshot, error) {
	return p.graphs.Get(ctx, p.store.Revision(), p.buildSnapshot)
}

func (p *Pipeline) buildSnapshot(ctx context.Context, revision int64) (*graph.Snapshot, error) {
	links, err := p.store.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	dangling, err := p.store.ListDanglingLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dangling links: %w", err)
	}

	edges := make([]graph.Edge, len(links))
	for i, l := range links {
		edges[i] = graph.Edge{Source: l.SourceID, Target: l.TargetID, Weight: l.Weight}
	}
	g := graph.FromEdges(edges, revision)

	stats := &graph.Stats{
		Nodes:         g.NumNodes(),
		Edges:         len(edges),
		DanglingCount: len(dangling),
	}
	for i, d := range dangling {
		if i >= 5 {
			break
		}
		stats.DanglingSample = append(stats.DanglingSample, d.Target)
	}
	return &graph.Snapshot{Graph: g, Stats: stats}, nil
}

// BuildContext runs the full pipeline for one prompt and returns the ordered,
// budget-bounded context.
func (p *Pipeline) BuildContext(ctx context.Context, req *Request) (*SelectedContext, error) {
	requestID := uuid.NewString()
	start := p.now()

	budget := req.Budget
	if budget <= 0 {
		budget = p.cfg.Select.TokenBudget
	}

	sc, err := p.buildContext(ctx, requestID, req.Prompt, budget)
	if p.metrics != nil {
		p.metrics.RecordRequest(err == nil)
	}
	if err != nil {
		p.logger.WarnContext(ctx, "context build failed",
			"request_id", requestID, "error", err)
		return nil, err
	}

	if p.metrics != nil {
		if sc.Degraded {
			p.metrics.RecordDegraded(sc.DegradedReason)
		}
		p.metrics.RecordSizes(sc.SeedCount, sc.SubgraphNodes, sc.TotalTokens)
	}
	p.logger.InfoContext(ctx, "context built",
		"request_id", requestID,
		"seeds", sc.SeedCount,
		"subgraph_nodes", sc.SubgraphNodes,
		"selected", len(sc.Items),
		"tokens", sc.TotalTokens,
		"degraded", sc.Degraded,
		"duration", p.now().Sub(start).String())
	return sc, nil
}

func (p *Pipeline) buildContext(ctx context.Context, requestID, prompt string, budget int) (*SelectedContext, error) {
	sc := &SelectedContext{RequestID: requestID}

	seeds, err := p.timedSeeds(ctx, prompt)
	if err != nil {
		return nil, err
	}
	sc.Degraded = seeds.Degraded
	sc.DegradedReason = seeds.DegradedReason
	if seeds.Degraded {
		p.logger.WarnContext(ctx, "seed selection degraded",
			"request_id", requestID, "reason", seeds.DegradedReason)
	}

	if len(seeds.Candidates) == 0 {
		fallback, err := p.recencySeeds(ctx)
		if err != nil {
			return nil, err
		}
		if len(fallback) == 0 {
			// Empty vault: empty context, not an error.
			return sc, nil
		}
		seeds.Candidates = fallback
	}
	sc.SeedCount = len(seeds.Candidates)

	stage := p.now()
	snap, err := p.GraphSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	p.recordStage(metrics.StageGraph, stage)

	stage = p.now()
	sg := graph.Expand(snap.Graph, seeds.SeedIDs(), graph.ExpandOptions{
		MaxHops:  p.cfg.Expand.MaxHops,
		MaxNodes: p.cfg.Expand.MaxNodes,
	})
	sc.SubgraphNodes = len(sg.Nodes)
	p.recordStage(metrics.StageExpand, stage)

	stage = p.now()
	nodes, err := p.extractFeatures(ctx, snap.Graph, sg, seeds)
	if err != nil {
		return nil, err
	}
	p.recordStage(metrics.StageFeatures, stage)
	if len(nodes) == 0 {
		return sc, nil
	}

	computeBaseScores(nodes, p.cfg.Features)

	stage = p.now()
	auth := applyAuthority(nodes, sg, p.cfg.Authority)
	sortByFinalScore(nodes)
	p.recordStage(metrics.StageAuthority, stage)
	sc.AuthorityIterations = auth.Iterations
	sc.AuthorityConverged = auth.Converged
	if !auth.Converged {
		p.logger.WarnContext(ctx, "authority propagation hit iteration cap",
			"request_id", requestID, "iterations", auth.Iterations)
	}

	stage = p.now()
	selected := selectNodes(nodes, budget, p.cfg.Select)
	p.recordStage(metrics.StageSelect, stage)

	stage = p.now()
	terms := queryTerms(prompt)
	for _, sel := range selected {
		excerpt, truncated := excerptFor(sel.Node.Body, terms, sel.TokenCap)
		sc.Items = append(sc.Items, ContextItem{
			DocID:      sel.Node.DocID,
			Title:      sel.Node.Title,
			Excerpt:    excerpt,
			FinalScore: sel.Node.FinalScore,
			Tokens:     EstimateTokens(excerpt),
			Truncated:  sel.Truncated || truncated,
		})
	}
	for _, item := range sc.Items {
		sc.TotalTokens += item.Tokens
	}
	p.recordStage(metrics.StageRender, stage)

	return sc, nil
}

func (p *Pipeline) timedSeeds(ctx context.Context, prompt string) (*SeedResult, error) {
	stage := p.now()
	seeds, err := p.SelectSeeds(ctx, prompt)
	p.recordStage(metrics.StageSeed, stage)
	return seeds, err
}

// recencySeeds is the last-resort seed source when neither search method
// produced a candidate: the most recently modified documents, so a non-empty
// vault always yields a non-empty context.
func (p *Pipeline) recencySeeds(ctx context.Context) ([]Candidate, error) {
	docs, err := p.store.ListDocuments(ctx, &store.FindDocument{ExcludeBody: true})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].ModifiedTs != docs[j].ModifiedTs {
			return docs[i].ModifiedTs > docs[j].ModifiedTs
		}
		return docs[i].ID < docs[j].ID
	})
	if len(docs) > p.cfg.Seed.SeedCount {
		docs = docs[:p.cfg.Seed.SeedCount]
	}
	candidates := make([]Candidate, len(docs))
	for i, doc := range docs {
		candidates[i] = Candidate{DocID: doc.ID}
	}
	return candidates, nil
}

func (p *Pipeline) recordStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, p.now().Sub(start))
	}
}
