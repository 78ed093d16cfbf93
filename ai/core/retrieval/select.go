package retrieval

import (
	"github.com/hyphora/hyphora/ai"
)

// selection is a chosen node plus its rendering constraint.
type selection struct {
	Node *ScoredNode
	// Truncated marks nodes force-included past the density pass, whose
	// excerpt is cut below the document's full size.
	Truncated bool
	// TokenCap bounds the rendered excerpt in tokens.
	TokenCap int
}

// selectNodes picks a budget-bounded subset of nodes, which must already be
// sorted by final score. If nodes is non-empty the result is non-empty: when
// nothing fits the budget, the top node is force-included and truncated.
func selectNodes(nodes []*ScoredNode, budget int, cfg ai.SelectConfig) []selection {
	if len(nodes) == 0 {
		return nil
	}

	var selected []selection
	switch cfg.Policy {
	case ai.SelectionPolicyMMR:
		selected = selectMMR(nodes, budget, cfg)
	default:
		selected = selectGreedy(nodes, budget, cfg)
	}

	if len(selected) == 0 {
		return []selection{{Node: nodes[0], Truncated: true, TokenCap: budget}}
	}
	return topUpToMin(selected, nodes, budget, cfg)
}

// topUpToMin force-includes the best remaining nodes, truncated to the
// leftover budget, until the minimum selected count is met. The minimum wins
// over density rejection but never over the budget itself.
func topUpToMin(selected []selection, nodes []*ScoredNode, budget int, cfg ai.SelectConfig) []selection {
	if len(selected) >= cfg.MinNodes {
		return selected
	}
	remaining := budget
	chosen := make(map[int64]struct{}, len(selected))
	for _, s := range selected {
		chosen[s.Node.DocID] = struct{}{}
		remaining -= s.TokenCap
	}
	for _, node := range nodes {
		if len(selected) >= cfg.MinNodes || remaining <= 0 {
			break
		}
		if _, ok := chosen[node.DocID]; ok {
			continue
		}
		tokenCap := node.Features.SizeTokens
		if tokenCap > remaining {
			tokenCap = remaining
		}
		selected = append(selected, selection{
			Node:      node,
			Truncated: tokenCap < node.Features.SizeTokens,
			TokenCap:  tokenCap,
		})
		remaining -= tokenCap
	}
	return selected
}

// selectGreedy walks nodes in score order and packs whatever still fits the
// remaining budget, without backtracking.
func selectGreedy(nodes []*ScoredNode, budget int, cfg ai.SelectConfig) []selection {
	selected := make([]selection, 0, cfg.MaxNodes)
	remaining := budget
	for _, node := range nodes {
		if cfg.MaxNodes > 0 && len(selected) >= cfg.MaxNodes {
			break
		}
		if node.Features.SizeTokens > remaining {
			continue
		}
		selected = append(selected, selection{Node: node, TokenCap: node.Features.SizeTokens})
		remaining -= node.Features.SizeTokens
	}
	return selected
}

// selectMMR picks nodes one at a time, trading relevance against redundancy
// to already selected nodes measured by body-embedding similarity.
func selectMMR(nodes []*ScoredNode, budget int, cfg ai.SelectConfig) []selection {
	selected := make([]selection, 0, cfg.MaxNodes)
	used := make([]bool, len(nodes))
	remaining := budget

	for {
		if cfg.MaxNodes > 0 && len(selected) >= cfg.MaxNodes {
			break
		}
		best := -1
		bestScore := 0.0
		for i, node := range nodes {
			if used[i] || node.Features.SizeTokens > remaining {
				continue
			}
			redundancy := 0.0
			for _, s := range selected {
				if sim := cosineSimilarity(node.BodyEmbedding, s.Node.BodyEmbedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := cfg.MMRLambda*node.FinalScore - (1-cfg.MMRLambda)*redundancy
			// Strict greater keeps the earlier (better ranked, smaller id on
			// tie) candidate on equal scores.
			if best < 0 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, selection{Node: nodes[best], TokenCap: nodes[best].Features.SizeTokens})
		remaining -= nodes[best].Features.SizeTokens
	}
	return selected
}
