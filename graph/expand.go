package graph

import (
	"sort"
)

// ExpandOptions bounds the subgraph expansion.
type ExpandOptions struct {
	// MaxHops is the maximum hop distance from any seed.
	MaxHops int
	// MaxNodes caps the subgraph size. When a BFS layer would exceed it,
	// nodes with the highest incoming edge weight from already-included
	// nodes are retained, ties broken by smaller doc id.
	MaxNodes int
}

// Node is one document in a subgraph.
type Node struct {
	DocID       int64
	HopDistance int
	Seed        bool
}

// Neighbor is an undirected weighted adjacency entry within a subgraph.
// Each directed edge contributes its weight to both directions.
type Neighbor struct {
	Pos    int
	Weight float64
}

// Subgraph is the bounded-hop neighborhood around a seed set. Every non-seed
// node is reachable from at least one seed within MaxHops. Seeds are always
// present, even when isolated.
type Subgraph struct {
	Nodes []Node
	pos   map[int64]int
	adj   [][]Neighbor
}

// Pos returns a node's position in Nodes, or -1.
func (s *Subgraph) Pos(docID int64) int {
	if p, ok := s.pos[docID]; ok {
		return p
	}
	return -1
}

// Neighbors returns the undirected weighted neighbors of the node at pos.
func (s *Subgraph) Neighbors(pos int) []Neighbor {
	return s.adj[pos]
}

// Expand runs a layered breadth-first expansion from the seed set over both
// forward and reverse edges. Hop distance is the shortest path in hops from
// any seed, ignoring edge weight.
func Expand(g *Graph, seeds []int64, opts ExpandOptions) *Subgraph {
	maxHops := opts.MaxHops
	if maxHops < 0 {
		maxHops = 0
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = len(seeds)
	}

	// Deduplicate and order seeds for deterministic node layout.
	seedSet := make(map[int64]struct{}, len(seeds))
	ordered := make([]int64, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := seedSet[id]; ok {
			continue
		}
		seedSet[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	sg := &Subgraph{pos: make(map[int64]int)}
	addNode := func(docID int64, hop int, seed bool) {
		sg.pos[docID] = len(sg.Nodes)
		sg.Nodes = append(sg.Nodes, Node{DocID: docID, HopDistance: hop, Seed: seed})
	}

	// Seeds are always included, whether or not they have edges.
	for _, id := range ordered {
		addNode(id, 0, true)
	}

	frontier := make([]int32, 0, len(ordered))
	included := make(map[int32]struct{})
	for _, id := range ordered {
		if idx, ok := g.index[id]; ok {
			frontier = append(frontier, idx)
			included[idx] = struct{}{}
		}
	}

	for hop := 1; hop <= maxHops && len(frontier) > 0 && len(sg.Nodes) < maxNodes; hop++ {
		// Accumulate candidate nodes with their incoming edge weight from the
		// frontier, traversing both edge directions.
		candidateWeight := make(map[int32]int64)
		for _, f := range frontier {
			for _, e := range g.out[f] {
				if _, ok := included[e.to]; !ok {
					candidateWeight[e.to] += int64(e.weight)
				}
			}
			for _, e := range g.in[f] {
				if _, ok := included[e.to]; !ok {
					candidateWeight[e.to] += int64(e.weight)
				}
			}
		}
		if len(candidateWeight) == 0 {
			break
		}

		candidates := make([]int32, 0, len(candidateWeight))
		for idx := range candidateWeight {
			candidates = append(candidates, idx)
		}
		sort.Slice(candidates, func(i, j int) bool {
			wi, wj := candidateWeight[candidates[i]], candidateWeight[candidates[j]]
			if wi != wj {
				return wi > wj
			}
			return g.ids[candidates[i]] < g.ids[candidates[j]]
		})

		room := maxNodes - len(sg.Nodes)
		if len(candidates) > room {
			candidates = candidates[:room]
		}

		// Append the retained layer in doc-id order.
		layer := append([]int32(nil), candidates...)
		sort.Slice(layer, func(i, j int) bool { return g.ids[layer[i]] < g.ids[layer[j]] })
		for _, idx := range layer {
			addNode(g.ids[idx], hop, false)
			included[idx] = struct{}{}
		}
		frontier = candidates
	}

	sg.buildAdjacency(g)
	return sg
}

// buildAdjacency materializes the undirected weighted adjacency restricted to
// nodes present in the subgraph.
func (s *Subgraph) buildAdjacency(g *Graph) {
	s.adj = make([][]Neighbor, len(s.Nodes))
	for pos, node := range s.Nodes {
		idx, ok := g.index[node.DocID]
		if !ok {
			continue
		}
		weights := make(map[int]float64)
		for _, e := range g.out[idx] {
			if other, ok := s.pos[g.ids[e.to]]; ok {
				weights[other] += float64(e.weight)
			}
		}
		for _, e := range g.in[idx] {
			if other, ok := s.pos[g.ids[e.to]]; ok {
				weights[other] += float64(e.weight)
			}
		}
		if len(weights) == 0 {
			continue
		}
		neighbors := make([]Neighbor, 0, len(weights))
		for other, w := range weights {
			neighbors = append(neighbors, Neighbor{Pos: other, Weight: w})
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Pos < neighbors[j].Pos })
		s.adj[pos] = neighbors
	}
}
