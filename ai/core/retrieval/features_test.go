package retrieval

import (
	"math"
	"testing"
	"time"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/store"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"nil vector", nil, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSemanticSimilarityTakesBetterField(t *testing.T) {
	prompt := []float32{1, 0}
	doc := &store.Document{
		TitleEmbedding: []float32{0, 1},
		BodyEmbedding:  []float32{1, 0},
	}
	if got := semanticSimilarity(prompt, doc); math.Abs(got-1) > 1e-9 {
		t.Errorf("semanticSimilarity = %v, want 1 (body match)", got)
	}
	if got := semanticSimilarity(nil, doc); got != 0 {
		t.Errorf("missing prompt vector should yield 0, got %v", got)
	}
}

func TestNormalizeFeatures(t *testing.T) {
	nodes := []*ScoredNode{
		{Features: FeatureVector{SemanticSim: 0.2, Degree: 1}},
		{Features: FeatureVector{SemanticSim: 0.6, Degree: 1}},
		{Features: FeatureVector{SemanticSim: 1.0, Degree: 1}},
	}
	normalizeFeatures(nodes)

	wantSim := []float64{0, 0.5, 1}
	for i, n := range nodes {
		if math.Abs(n.Features.SemanticSim-wantSim[i]) > 1e-9 {
			t.Errorf("node %d sim = %v, want %v", i, n.Features.SemanticSim, wantSim[i])
		}
		// All degrees equal: the degenerate feature normalizes to 1.
		if n.Features.Degree != 1 {
			t.Errorf("degenerate feature should normalize to 1, got %v", n.Features.Degree)
		}
	}
}

func TestNormalizeFeaturesSingleNode(t *testing.T) {
	nodes := []*ScoredNode{{Features: FeatureVector{SemanticSim: 0.3, Recency: 0.7}}}
	normalizeFeatures(nodes)
	if nodes[0].Features.SemanticSim != 1 || nodes[0].Features.Recency != 1 {
		t.Errorf("single node should normalize to 1, got %+v", nodes[0].Features)
	}
}

func TestRecencyDecay(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := NewPipeline(Options{
		Config: ai.DefaultConfig(),
		Now:    func() time.Time { return now },
	})

	fresh := p.recency(now.Unix())
	if math.Abs(fresh-1) > 1e-9 {
		t.Errorf("fresh document recency = %v, want 1", fresh)
	}

	halfLife := p.cfg.Features.RecencyHalfLifeDays * 24 * 3600
	aged := p.recency(now.Unix() - int64(halfLife))
	if math.Abs(aged-math.Exp(-1)) > 1e-9 {
		t.Errorf("aged recency = %v, want e^-1", aged)
	}

	future := p.recency(now.Unix() + 3600)
	if math.Abs(future-1) > 1e-9 {
		t.Errorf("future timestamps clamp to now, got %v", future)
	}
}

func TestComputeBaseScores(t *testing.T) {
	cfg := ai.FeatureConfig{
		WeightSemantic: 0.4,
		WeightText:     0.2,
		WeightHop:      0.2,
		WeightRecency:  0.2,
	}
	nodes := []*ScoredNode{{
		Features: FeatureVector{
			SemanticSim:   1,
			TextRelevance: 0.5,
			HopProximity:  1,
			Recency:       0,
		},
	}}
	computeBaseScores(nodes, cfg)

	want := 0.4*1 + 0.2*0.5 + 0.2*1
	if math.Abs(nodes[0].BaseScore-want) > 1e-9 {
		t.Errorf("base score = %v, want %v", nodes[0].BaseScore, want)
	}
}
