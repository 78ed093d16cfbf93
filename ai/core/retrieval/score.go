package retrieval

import (
	"sort"

	"github.com/hyphora/hyphora/ai"
)

// computeBaseScores fuses the normalized features into each node's base
// relevance score.
func computeBaseScores(nodes []*ScoredNode, cfg ai.FeatureConfig) {
	for _, n := range nodes {
		f := n.Features
		n.BaseScore = cfg.WeightSemantic*f.SemanticSim +
			cfg.WeightText*f.TextRelevance +
			cfg.WeightHop*f.HopProximity +
			cfg.WeightRecency*f.Recency
	}
}

// sortByFinalScore orders nodes by final score descending, ties broken by
// smaller doc id.
func sortByFinalScore(nodes []*ScoredNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].FinalScore != nodes[j].FinalScore {
			return nodes[i].FinalScore > nodes[j].FinalScore
		}
		return nodes[i].DocID < nodes[j].DocID
	})
}
