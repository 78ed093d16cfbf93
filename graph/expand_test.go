package graph

import (
	"testing"
)

func buildChainGraph() *Graph {
	// A(1) -> B(2) -> C(3); D(4) and E(5) carry no edges at all.
	return FromEdges([]Edge{
		{Source: 1, Target: 2, Weight: 1},
		{Source: 2, Target: 3, Weight: 1},
	}, 1)
}

func nodeIDs(sg *Subgraph) []int64 {
	ids := make([]int64, len(sg.Nodes))
	for i, n := range sg.Nodes {
		ids[i] = n.DocID
	}
	return ids
}

func TestExpandSingleHopBridging(t *testing.T) {
	g := buildChainGraph()

	sg := Expand(g, []int64{1, 3}, ExpandOptions{MaxHops: 1, MaxNodes: 10})

	got := nodeIDs(sg)
	want := []int64{1, 3, 2}
	if len(got) != len(want) {
		t.Fatalf("subgraph nodes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subgraph nodes = %v, want %v", got, want)
		}
	}

	for _, n := range sg.Nodes {
		switch n.DocID {
		case 1, 3:
			if !n.Seed || n.HopDistance != 0 {
				t.Errorf("node %d should be a seed at hop 0, got %+v", n.DocID, n)
			}
		case 2:
			if n.Seed || n.HopDistance != 1 {
				t.Errorf("node 2 should be a non-seed at hop 1, got %+v", n)
			}
		}
	}

	if sg.Pos(4) != -1 || sg.Pos(5) != -1 {
		t.Errorf("isolated documents must not appear in the subgraph")
	}
}

func TestExpandHopLimit(t *testing.T) {
	// 1 -> 2 -> 3 -> 4 chain.
	g := FromEdges([]Edge{
		{Source: 1, Target: 2, Weight: 1},
		{Source: 2, Target: 3, Weight: 1},
		{Source: 3, Target: 4, Weight: 1},
	}, 1)

	sg := Expand(g, []int64{1}, ExpandOptions{MaxHops: 2, MaxNodes: 10})
	if sg.Pos(3) < 0 {
		t.Errorf("hop-2 node should be included")
	}
	if sg.Pos(4) >= 0 {
		t.Errorf("hop-3 node must not be included with MaxHops=2")
	}
	for _, n := range sg.Nodes {
		if n.HopDistance > 2 {
			t.Errorf("node %d exceeds hop limit: %d", n.DocID, n.HopDistance)
		}
	}
}

func TestExpandReverseEdges(t *testing.T) {
	// 2 links to 1; expanding from 1 must still reach 2.
	g := FromEdges([]Edge{{Source: 2, Target: 1, Weight: 1}}, 1)

	sg := Expand(g, []int64{1}, ExpandOptions{MaxHops: 1, MaxNodes: 10})
	if sg.Pos(2) < 0 {
		t.Errorf("reverse edge should be traversed")
	}
}

func TestExpandIsolatedSeeds(t *testing.T) {
	g := buildChainGraph()

	sg := Expand(g, []int64{5, 4}, ExpandOptions{MaxHops: 2, MaxNodes: 10})
	if len(sg.Nodes) != 2 {
		t.Fatalf("isolated seeds must still be included, got %v", nodeIDs(sg))
	}
	// Seeds come out deduplicated and ordered by id.
	if sg.Nodes[0].DocID != 4 || sg.Nodes[1].DocID != 5 {
		t.Errorf("seed order = %v, want [4 5]", nodeIDs(sg))
	}
	if len(sg.Neighbors(0)) != 0 {
		t.Errorf("isolated seed should have no neighbors")
	}
}

func TestExpandNodeCapByInWeight(t *testing.T) {
	// Seed 1 links to 2 (weight 3), 3 (weight 1), 4 (weight 1).
	g := FromEdges([]Edge{
		{Source: 1, Target: 2, Weight: 3},
		{Source: 1, Target: 3, Weight: 1},
		{Source: 1, Target: 4, Weight: 1},
	}, 1)

	sg := Expand(g, []int64{1}, ExpandOptions{MaxHops: 1, MaxNodes: 3})
	if len(sg.Nodes) != 3 {
		t.Fatalf("node cap not enforced, got %v", nodeIDs(sg))
	}
	if sg.Pos(2) < 0 {
		t.Errorf("highest in-weight node must be retained")
	}
	// 3 and 4 tie on weight; the smaller id wins the last slot.
	if sg.Pos(3) < 0 {
		t.Errorf("tie should break to the smaller doc id, got %v", nodeIDs(sg))
	}
	if sg.Pos(4) >= 0 {
		t.Errorf("node 4 should be discarded by the cap")
	}
}

func TestExpandAdjacencyUndirected(t *testing.T) {
	g := buildChainGraph()
	sg := Expand(g, []int64{1, 3}, ExpandOptions{MaxHops: 1, MaxNodes: 10})

	posB := sg.Pos(2)
	if posB < 0 {
		t.Fatal("node 2 missing")
	}
	neighbors := sg.Neighbors(posB)
	if len(neighbors) != 2 {
		t.Fatalf("node 2 should neighbor both seeds, got %v", neighbors)
	}
	// Directed edges contribute to both endpoints' adjacency.
	if len(sg.Neighbors(sg.Pos(1))) != 1 || len(sg.Neighbors(sg.Pos(3))) != 1 {
		t.Errorf("seed adjacency should include the bridge node")
	}
}

func TestExpandDeterminism(t *testing.T) {
	g := FromEdges([]Edge{
		{Source: 1, Target: 2, Weight: 1},
		{Source: 1, Target: 3, Weight: 1},
		{Source: 1, Target: 4, Weight: 1},
		{Source: 2, Target: 5, Weight: 2},
	}, 1)

	first := nodeIDs(Expand(g, []int64{1}, ExpandOptions{MaxHops: 2, MaxNodes: 4}))
	for i := 0; i < 20; i++ {
		got := nodeIDs(Expand(g, []int64{1}, ExpandOptions{MaxHops: 2, MaxNodes: 4}))
		if len(got) != len(first) {
			t.Fatalf("run %d: nodes = %v, want %v", i, got, first)
		}
		for j := range first {
			if got[j] != first[j] {
				t.Fatalf("run %d: nodes = %v, want %v", i, got, first)
			}
		}
	}
}
