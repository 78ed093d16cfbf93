package retrieval

import (
	"testing"

	"github.com/hyphora/hyphora/ai"
)

func selectConfig() ai.SelectConfig {
	return ai.SelectConfig{
		TokenBudget: 100,
		MinNodes:    1,
		MaxNodes:    10,
		Policy:      ai.SelectionPolicyGreedy,
		MMRLambda:   0.635,
	}
}

func scoredNode(id int64, score float64, sizeTokens int) *ScoredNode {
	return &ScoredNode{
		DocID:      id,
		FinalScore: score,
		Features:   FeatureVector{SizeTokens: sizeTokens},
	}
}

func totalTokens(selected []selection) int {
	var sum int
	for _, s := range selected {
		sum += s.Node.Features.SizeTokens
	}
	return sum
}

func TestSelectGreedyRespectsBudget(t *testing.T) {
	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 50),
		scoredNode(2, 0.8, 60),
		scoredNode(3, 0.7, 40),
	}
	selected := selectNodes(nodes, 100, selectConfig())

	// Node 2 does not fit after node 1; greedy skips it and takes node 3.
	if len(selected) != 2 {
		t.Fatalf("selected %d nodes, want 2", len(selected))
	}
	if selected[0].Node.DocID != 1 || selected[1].Node.DocID != 3 {
		t.Errorf("selection = [%d %d], want [1 3]", selected[0].Node.DocID, selected[1].Node.DocID)
	}
	if totalTokens(selected) > 100 {
		t.Errorf("budget exceeded: %d tokens", totalTokens(selected))
	}
	if selected[0].TokenCap != 50 || selected[1].TokenCap != 40 {
		t.Errorf("untruncated selections should carry their full size as token cap, got %d and %d",
			selected[0].TokenCap, selected[1].TokenCap)
	}
}

func TestSelectMinNodesTopUp(t *testing.T) {
	cfg := selectConfig()
	cfg.MinNodes = 3
	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 50),
		scoredNode(2, 0.8, 50),
		scoredNode(3, 0.7, 50),
	}
	selected := selectNodes(nodes, 60, cfg)

	// Greedy packs only node 1; the minimum pulls in node 2 truncated to the
	// leftover 10 tokens, and node 3 finds no budget at all.
	if len(selected) != 2 {
		t.Fatalf("selected %d nodes, want 2", len(selected))
	}
	if selected[0].Node.DocID != 1 || selected[0].Truncated {
		t.Errorf("first = %+v, want full node 1", selected[0])
	}
	if selected[1].Node.DocID != 2 || !selected[1].Truncated || selected[1].TokenCap != 10 {
		t.Errorf("second = %+v, want node 2 truncated to 10 tokens", selected[1])
	}
	if got := selected[0].TokenCap + selected[1].TokenCap; got > 60 {
		t.Errorf("token caps exceed budget: %d", got)
	}
}

func TestSelectMinNodesReached(t *testing.T) {
	cfg := selectConfig()
	cfg.MinNodes = 3
	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 50),
		scoredNode(2, 0.8, 30),
		scoredNode(3, 0.7, 40),
	}
	selected := selectNodes(nodes, 100, cfg)

	if len(selected) != 3 {
		t.Fatalf("selected %d nodes, want 3", len(selected))
	}
	if selected[2].Node.DocID != 3 || !selected[2].Truncated || selected[2].TokenCap != 20 {
		t.Errorf("third = %+v, want node 3 truncated to the 20 leftover tokens", selected[2])
	}
}

func TestSelectForcedTruncation(t *testing.T) {
	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 500),
		scoredNode(2, 0.8, 400),
	}
	selected := selectNodes(nodes, 50, selectConfig())

	if len(selected) != 1 {
		t.Fatalf("selected %d nodes, want exactly 1 forced node", len(selected))
	}
	if selected[0].Node.DocID != 1 || !selected[0].Truncated {
		t.Errorf("the top node should be force-included truncated, got %+v", selected[0])
	}
	if selected[0].TokenCap != 50 {
		t.Errorf("token cap = %d, want 50", selected[0].TokenCap)
	}
}

func TestSelectMaxNodesCap(t *testing.T) {
	cfg := selectConfig()
	cfg.MaxNodes = 2
	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 10),
		scoredNode(2, 0.8, 10),
		scoredNode(3, 0.7, 10),
	}
	selected := selectNodes(nodes, 1000, cfg)
	if len(selected) != 2 {
		t.Errorf("max nodes cap not applied, got %d", len(selected))
	}
}

func TestSelectEmptyInput(t *testing.T) {
	if got := selectNodes(nil, 100, selectConfig()); got != nil {
		t.Errorf("empty input should select nothing, got %v", got)
	}
}

func TestSelectMMRPenalizesRedundancy(t *testing.T) {
	cfg := selectConfig()
	cfg.Policy = ai.SelectionPolicyMMR

	near := scoredNode(2, 0.85, 10)
	near.BodyEmbedding = []float32{1, 0}
	diverse := scoredNode(3, 0.80, 10)
	diverse.BodyEmbedding = []float32{0, 1}
	top := scoredNode(1, 0.9, 10)
	top.BodyEmbedding = []float32{1, 0}

	selected := selectNodes([]*ScoredNode{top, near, diverse}, 1000, cfg)
	if len(selected) != 3 {
		t.Fatalf("selected %d nodes, want 3", len(selected))
	}
	if selected[0].Node.DocID != 1 {
		t.Errorf("first pick should be the top-scored node, got %d", selected[0].Node.DocID)
	}
	// Node 2 duplicates node 1's embedding; the diverse node wins the second
	// slot despite the lower final score.
	if selected[1].Node.DocID != 3 {
		t.Errorf("second pick should be the diverse node, got %d", selected[1].Node.DocID)
	}
}

func TestSelectMMRRespectsBudget(t *testing.T) {
	cfg := selectConfig()
	cfg.Policy = ai.SelectionPolicyMMR

	nodes := []*ScoredNode{
		scoredNode(1, 0.9, 80),
		scoredNode(2, 0.8, 80),
		scoredNode(3, 0.7, 15),
	}
	selected := selectNodes(nodes, 100, cfg)
	if totalTokens(selected) > 100 {
		t.Errorf("budget exceeded: %d tokens", totalTokens(selected))
	}
	if len(selected) != 2 {
		t.Errorf("selected %d nodes, want 2", len(selected))
	}
}
