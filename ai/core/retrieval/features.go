package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hyphora/hyphora/graph"
	"github.com/hyphora/hyphora/store"
)

const featureWorkers = 8

// extractFeatures loads each subgraph node's document and computes its raw
// feature vector, then min-max normalizes the batch. Documents deleted since
// the snapshot are skipped, never fatal. Extraction runs concurrently but
// lands results in node order, keeping the output deterministic.
func (p *Pipeline) extractFeatures(ctx context.Context, g *graph.Graph, sg *graph.Subgraph, seeds *SeedResult) ([]*ScoredNode, error) {
	slots := make([]*ScoredNode, len(sg.Nodes))

	seedScores := make(map[int64]float64, len(seeds.Candidates))
	for _, c := range seeds.Candidates {
		seedScores[c.DocID] = c.Score
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(featureWorkers)
	for i, node := range sg.Nodes {
		eg.Go(func() error {
			doc, err := p.store.GetDocument(egCtx, &store.FindDocument{
				ID:             &node.DocID,
				WithEmbeddings: true,
			})
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("get document %d: %w", node.DocID, err)
			}

			sn := &ScoredNode{
				DocID:         node.DocID,
				Title:         doc.Title,
				Body:          doc.Body,
				HopDistance:   node.HopDistance,
				Seed:          node.Seed,
				SeedScore:     seedScores[node.DocID],
				BodyEmbedding: doc.BodyEmbedding,
			}
			sn.Features = FeatureVector{
				SemanticSim:   semanticSimilarity(seeds.PromptVector, doc),
				TextRelevance: float64(seeds.TextScores[node.DocID]),
				HopProximity:  1 / (1 + float64(node.HopDistance)),
				Degree:        float64(g.Degree(node.DocID)),
				Recency:       p.recency(doc.ModifiedTs),
				SizeTokens:    EstimateTokens(doc.Body),
			}
			slots[i] = sn
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	nodes := make([]*ScoredNode, 0, len(slots))
	for _, sn := range slots {
		if sn != nil {
			nodes = append(nodes, sn)
		}
	}

	normalizeFeatures(nodes)
	return nodes, nil
}

// semanticSimilarity is the cosine similarity between the prompt vector and
// the document, taking the better of title and body embeddings. Zero when the
// prompt vector or both embeddings are missing.
func semanticSimilarity(promptVector []float32, doc *store.Document) float64 {
	if promptVector == nil {
		return 0
	}
	sim := cosineSimilarity(promptVector, doc.TitleEmbedding)
	if bodySim := cosineSimilarity(promptVector, doc.BodyEmbedding); bodySim > sim {
		sim = bodySim
	}
	return sim
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// recency decays exponentially with document age over the configured
// half-life.
func (p *Pipeline) recency(modifiedTs int64) float64 {
	tau := p.cfg.Features.RecencyHalfLifeDays * 24 * 3600
	if tau <= 0 {
		return 0
	}
	age := p.now().Unix() - modifiedTs
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / tau)
}

// normalizeFeatures min-max scales every normalized feature across the batch.
// A degenerate feature where all values coincide normalizes to 1.
func normalizeFeatures(nodes []*ScoredNode) {
	if len(nodes) == 0 {
		return
	}
	fields := []func(*FeatureVector) *float64{
		func(f *FeatureVector) *float64 { return &f.SemanticSim },
		func(f *FeatureVector) *float64 { return &f.TextRelevance },
		func(f *FeatureVector) *float64 { return &f.HopProximity },
		func(f *FeatureVector) *float64 { return &f.Degree },
		func(f *FeatureVector) *float64 { return &f.Recency },
	}
	for _, field := range fields {
		min, max := math.Inf(1), math.Inf(-1)
		for _, n := range nodes {
			v := *field(&n.Features)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		for _, n := range nodes {
			v := field(&n.Features)
			if max == min {
				*v = 1
			} else {
				*v = (*v - min) / (max - min)
			}
		}
	}
}
