package retrieval

import (
	"math"

	"github.com/hyphora/hyphora/ai"
	"github.com/hyphora/hyphora/graph"
)

// authorityResult reports how the propagation loop terminated.
type authorityResult struct {
	Iterations int
	Converged  bool
}

// applyAuthority runs personalized propagation over the subgraph adjacency
// restricted to the surviving nodes, treating edges as undirected. The
// restart distribution is proportional to fused seed scores. Each node gets
// its AuthorityScore and FinalScore set; scores sum to ~1 across the batch.
func applyAuthority(nodes []*ScoredNode, sg *graph.Subgraph, cfg ai.AuthorityConfig) authorityResult {
	n := len(nodes)
	if n == 0 {
		return authorityResult{Converged: true}
	}

	local := make(map[int64]int, n)
	for i, node := range nodes {
		local[node.DocID] = i
	}

	// Adjacency between surviving nodes, with per-node outgoing weight sums.
	type arc struct {
		to     int
		weight float64
	}
	adj := make([][]arc, n)
	outWeight := make([]float64, n)
	for i, node := range nodes {
		pos := sg.Pos(node.DocID)
		if pos < 0 {
			continue
		}
		for _, nb := range sg.Neighbors(pos) {
			to, ok := local[sg.Nodes[nb.Pos].DocID]
			if !ok {
				continue
			}
			adj[i] = append(adj[i], arc{to: to, weight: nb.Weight})
			outWeight[i] += nb.Weight
		}
	}

	restart := make([]float64, n)
	var restartSum float64
	for i, node := range nodes {
		if node.Seed && node.SeedScore > 0 {
			restart[i] = node.SeedScore
			restartSum += node.SeedScore
		}
	}
	if restartSum > 0 {
		for i := range restart {
			restart[i] /= restartSum
		}
	} else {
		// No usable seed mass, fall back to a uniform restart.
		for i := range restart {
			restart[i] = 1 / float64(n)
		}
	}

	auth := make([]float64, n)
	copy(auth, restart)
	next := make([]float64, n)

	result := authorityResult{}
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		var danglingMass float64
		for i := range next {
			next[i] = 0
			if outWeight[i] == 0 {
				danglingMass += auth[i]
			}
		}
		for m := range adj {
			if outWeight[m] == 0 {
				continue
			}
			share := cfg.Damping * auth[m] / outWeight[m]
			for _, a := range adj[m] {
				next[a.to] += share * a.weight
			}
		}
		// Dangling mass restarts; this keeps the vector a probability
		// distribution.
		var diff float64
		for i := range next {
			next[i] += (1-cfg.Damping)*restart[i] + cfg.Damping*danglingMass*restart[i]
			diff += math.Abs(next[i] - auth[i])
		}
		auth, next = next, auth
		result.Iterations = iter + 1

		if diff < cfg.Epsilon {
			result.Converged = true
			break
		}
	}

	for i, node := range nodes {
		node.AuthorityScore = auth[i]
		node.FinalScore = cfg.WeightBase*node.BaseScore + cfg.WeightAuthority*node.AuthorityScore
	}
	return result
}
