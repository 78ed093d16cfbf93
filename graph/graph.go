// Package graph builds and traverses the weighted link graph of a note
// vault. Documents are mapped to dense integer indices and adjacency is
// stored as index-based slices, which keeps traversal cache-friendly and
// avoids pointer cycles.
package graph

import (
	"sort"
)

// Edge is a resolved, weighted link between two documents.
type Edge struct {
	Source int64
	Target int64
	Weight int
}

// Dangling is a wiki-link whose target did not resolve to any document title.
type Dangling struct {
	SourceID int64
	Target   string
}

// Stats summarizes a built graph for logging and the stats endpoint.
type Stats struct {
	Nodes         int
	Edges         int
	DanglingCount int
	// DanglingSample holds up to a handful of unresolved targets for
	// diagnostics.
	DanglingSample []string
}

type halfEdge struct {
	to     int32
	weight int32
}

// Graph is an immutable snapshot of the link graph. The node set contains
// every document that participates in at least one resolved edge.
type Graph struct {
	revision int64
	index    map[int64]int32
	ids      []int64
	out      [][]halfEdge
	in       [][]halfEdge
}

// FromEdges assembles a graph from resolved edges, typically loaded from the
// store's link table.
func FromEdges(edges []Edge, revision int64) *Graph {
	idSet := make(map[int64]struct{}, len(edges)*2)
	for _, e := range edges {
		idSet[e.Source] = struct{}{}
		idSet[e.Target] = struct{}{}
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[int64]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}

	out := make([][]halfEdge, len(ids))
	in := make([][]halfEdge, len(ids))
	for _, e := range edges {
		s, t := index[e.Source], index[e.Target]
		out[s] = append(out[s], halfEdge{to: t, weight: int32(e.Weight)})
		in[t] = append(in[t], halfEdge{to: s, weight: int32(e.Weight)})
	}
	for i := range out {
		sortHalfEdges(out[i])
		sortHalfEdges(in[i])
	}

	return &Graph{
		revision: revision,
		index:    index,
		ids:      ids,
		out:      out,
		in:       in,
	}
}

func sortHalfEdges(edges []halfEdge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].to < edges[j].to })
}

// Revision returns the vault snapshot revision the graph was built from.
func (g *Graph) Revision() int64 {
	return g.revision
}

// NumNodes returns the number of documents with at least one edge.
func (g *Graph) NumNodes() int {
	return len(g.ids)
}

// NumEdges returns the number of directed edges.
func (g *Graph) NumEdges() int {
	var n int
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// Contains reports whether the document participates in any edge.
func (g *Graph) Contains(docID int64) bool {
	_, ok := g.index[docID]
	return ok
}

// Degree returns in-degree + out-degree of a document in the full graph,
// or 0 for documents without edges.
func (g *Graph) Degree(docID int64) int {
	i, ok := g.index[docID]
	if !ok {
		return 0
	}
	return len(g.out[i]) + len(g.in[i])
}

// Builder accumulates documents and wiki-link occurrences, then resolves
// targets against document titles (case-insensitive exact match).
type Builder struct {
	titleIndex map[string]int64
	docIDs     []int64
	rawLinks   []rawLink
}

type rawLink struct {
	sourceID int64
	target   string
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		titleIndex: make(map[string]int64),
	}
}

// AddDocument registers a document title for link resolution. When two
// titles collide case-insensitively, the smaller id wins so resolution stays
// deterministic.
func (b *Builder) AddDocument(id int64, title string) {
	key := foldTitle(title)
	if existing, ok := b.titleIndex[key]; !ok || id < existing {
		b.titleIndex[key] = id
	}
	b.docIDs = append(b.docIDs, id)
}

// AddBody extracts wiki-link occurrences from a document body. Resolution is
// deferred until Resolve so that all titles are known first.
func (b *Builder) AddBody(sourceID int64, body string) {
	for _, target := range ExtractWikiLinks(body) {
		b.rawLinks = append(b.rawLinks, rawLink{sourceID: sourceID, target: target})
	}
}

// Resolve maps link occurrences to document ids. Multiple occurrences of the
// same resolved target within one document collapse to a single edge with
// accumulated weight. Unresolved targets are returned as dangling, deduplicated
// per (source, target) pair.
func (b *Builder) Resolve() ([]Edge, []Dangling) {
	type edgeKey struct {
		source int64
		target int64
	}
	weights := make(map[edgeKey]int)
	danglingSet := make(map[Dangling]struct{})

	for _, link := range b.rawLinks {
		targetID, ok := b.titleIndex[foldTitle(link.target)]
		if !ok {
			danglingSet[Dangling{SourceID: link.sourceID, Target: link.target}] = struct{}{}
			continue
		}
		weights[edgeKey{source: link.sourceID, target: targetID}]++
	}

	edges := make([]Edge, 0, len(weights))
	for key, weight := range weights {
		edges = append(edges, Edge{Source: key.source, Target: key.target, Weight: weight})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	dangling := make([]Dangling, 0, len(danglingSet))
	for d := range danglingSet {
		dangling = append(dangling, d)
	}
	sort.Slice(dangling, func(i, j int) bool {
		if dangling[i].SourceID != dangling[j].SourceID {
			return dangling[i].SourceID < dangling[j].SourceID
		}
		return dangling[i].Target < dangling[j].Target
	})

	return edges, dangling
}

// Build resolves all links and assembles the graph plus its statistics.
func (b *Builder) Build(revision int64) (*Graph, *Stats) {
	edges, dangling := b.Resolve()
	g := FromEdges(edges, revision)

	stats := &Stats{
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
	return g, stats
}
