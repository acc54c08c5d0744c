package genotype

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

// taggedGraph returns n box nodes whose color X encodes their original index.
func taggedGraph(n int) *Graph {
	g := &Graph{}
	for i := range n {
		g.AddNode(Node{Color: r3.Vec{X: float64(i) / 10}, Shape: geom.Box(1, 1, 1)})
	}
	return g
}

func tag(g *Graph, i int) int {
	return int(g.Nodes[i].Color.X*10 + 0.5)
}

func wire(scope Scope, c Category, idx int) Wire {
	return Wire{Scope: scope, Gate: GateRef{Category: c, Index: idx}, Direction: 1}
}

func TestRemoveEdgePatchesWires(t *testing.T) {
	g := taggedGraph(4)
	for _, target := range []int{1, 2, 3} {
		g.AddEdge(Edge{Source: 0, Target: target})
	}
	g.Nodes[0].Gates = []GateNode{{Name: "sum", Wires: []Wire{
		wire(Child(0), Control, 0),
		wire(Child(1), Control, 0),
		wire(Child(2), Control, 0),
		wire(Current(), Sensor, 2),
		wire(Current(), Effector, 1),
	}}}

	if !g.RemoveEdge(0, 1) {
		t.Fatal("RemoveEdge refused")
	}
	if len(g.Edges[0]) != 2 || g.Edges[0][1].Target != 3 {
		t.Fatalf("edges after removal = %+v", g.Edges[0])
	}

	want := []Wire{
		wire(Child(0), Control, 0),
		wire(Child(1), Control, 0),
		wire(Current(), Sensor, 1),
	}
	got := g.Nodes[0].Gates[0].Wires
	if len(got) != len(want) {
		t.Fatalf("wires = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("wire %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRemoveGatePatchesWires(t *testing.T) {
	g := taggedGraph(2)
	g.AddEdge(Edge{Source: 1, Target: 0})
	g.Nodes[0].Gates = []GateNode{
		{Name: "sum", Wires: []Wire{wire(Current(), Control, 1), wire(Current(), Control, 2)}},
		{Name: "sum"},
		{Name: "sum"},
	}
	g.Nodes[1].Gates = []GateNode{
		{Name: "sum", Wires: []Wire{wire(Child(0), Control, 2), wire(Child(0), Control, 1), wire(Current(), Control, 0)}},
	}

	if !g.RemoveGate(0, 1) {
		t.Fatal("RemoveGate refused")
	}
	if len(g.Nodes[0].Gates) != 2 {
		t.Fatalf("gate count = %d, want 2", len(g.Nodes[0].Gates))
	}
	local := g.Nodes[0].Gates[0].Wires
	if len(local) != 1 || local[0] != wire(Current(), Control, 1) {
		t.Errorf("local wires = %+v, want one wire to control 1", local)
	}
	remote := g.Nodes[1].Gates[0].Wires
	if len(remote) != 2 || remote[0] != wire(Child(0), Control, 1) || remote[1] != wire(Current(), Control, 0) {
		t.Errorf("remote wires = %+v", remote)
	}
}

func TestRemoveWire(t *testing.T) {
	g := taggedGraph(1)
	g.Nodes[0].Gates = []GateNode{{Name: "sum", Wires: []Wire{
		wire(Current(), Control, 0), wire(Current(), Sensor, 0),
	}}}
	if !g.RemoveWire(0, 0, 0) {
		t.Fatal("RemoveWire refused")
	}
	if w := g.Nodes[0].Gates[0].Wires; len(w) != 1 || w[0].Gate.Category != Sensor {
		t.Errorf("wires = %+v, want the sensor wire", w)
	}
	if g.RemoveWire(0, 0, 4) {
		t.Error("RemoveWire accepted an out-of-range slot")
	}
}

func TestRemoveNode(t *testing.T) {
	g := taggedGraph(4)
	g.Root = 3
	g.AddEdge(Edge{Source: 0, Target: 1})
	g.AddEdge(Edge{Source: 0, Target: 3})
	g.AddEdge(Edge{Source: 1, Target: 3})
	g.AddEdge(Edge{Source: 3, Target: 2})
	g.AddEdge(Edge{Source: 3, Target: 3})
	g.AddEdge(Edge{Source: 2, Target: 0})
	g.Nodes[0].Gates = []GateNode{{Name: "sum", Wires: []Wire{
		wire(Child(0), Control, 0),
		wire(Child(1), Sensor, 0),
	}}}

	if !g.RemoveNode(1) {
		t.Fatal("RemoveNode refused")
	}
	if g.NodeCount() != 3 || len(g.Edges) != 3 {
		t.Fatalf("node count %d, edge lists %d, want 3", g.NodeCount(), len(g.Edges))
	}
	if tag(g, 1) != 3 {
		t.Fatalf("slot 1 holds node %d, want former node 3", tag(g, 1))
	}
	if g.Root != 1 {
		t.Errorf("root = %d, want 1 (moved with node 3)", g.Root)
	}

	links := make(map[[2]int]int)
	for i, edges := range g.Edges {
		for _, e := range edges {
			if e.Source != i {
				t.Errorf("edge in list %d has source %d", i, e.Source)
			}
			if e.Target < 0 || e.Target >= g.NodeCount() {
				t.Fatalf("edge target %d out of range", e.Target)
			}
			links[[2]int{tag(g, i), tag(g, e.Target)}]++
		}
	}
	want := map[[2]int]int{{0, 3}: 1, {3, 2}: 1, {3, 3}: 1, {2, 0}: 1}
	if len(links) != len(want) {
		t.Errorf("links = %v, want %v", links, want)
	}
	for k, v := range want {
		if links[k] != v {
			t.Errorf("link %v count = %d, want %d", k, links[k], v)
		}
	}

	// Child(0) pointed at the removed node and is gone; Child(1) moved to slot 0.
	wires := g.Nodes[0].Gates[0].Wires
	if len(wires) != 1 || wires[0] != wire(Child(0), Sensor, 0) {
		t.Errorf("wires on node 0 = %+v, want only the retargeted sensor wire", wires)
	}
}

func TestRemoveNodeKeepsLast(t *testing.T) {
	g := taggedGraph(1)
	if g.RemoveNode(0) {
		t.Error("RemoveNode removed the only node")
	}
	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1", g.NodeCount())
	}
}

// TestRemoveNodeSafety removes random nodes from normalized graphs and checks
// that no edge or wire is left dangling, before any re-normalization.
func TestRemoveNodeSafety(t *testing.T) {
	n := newTestNormalizer(20)
	rng := rand.New(rand.NewPCG(60, 0))
	for round := range 200 {
		g := garbageGraph(rng)
		n.Normalize(g)
		for g.NodeCount() > 1 {
			victim := rng.IntN(g.NodeCount())
			if !g.RemoveNode(victim) {
				t.Fatalf("round %d: RemoveNode(%d) refused with %d nodes", round, victim, g.NodeCount())
			}
			for i, edges := range g.Edges {
				for _, e := range edges {
					if e.Target < 0 || e.Target >= g.NodeCount() || e.Source != i {
						t.Fatalf("round %d: dangling edge %d->%d", round, e.Source, e.Target)
					}
				}
			}
			for i, node := range g.Nodes {
				for _, gn := range node.Gates {
					for _, w := range gn.Wires {
						target := i
						if w.Scope.Kind == ScopeChild {
							if w.Scope.Index >= len(g.Edges[i]) {
								t.Fatalf("round %d: wire child slot %d of %d", round, w.Scope.Index, len(g.Edges[i]))
							}
							target = g.Edges[i][w.Scope.Index].Target
						}
						if w.Gate.Index >= g.CategorySize(target, w.Gate.Category) {
							t.Fatalf("round %d: wire %+v out of range", round, w)
						}
					}
				}
			}
		}
		if g.RemoveNode(0) {
			t.Fatalf("round %d: removed the last node", round)
		}
	}
}
