// Package genotype holds the persisted encoding of a creature: a directed,
// possibly cyclic multigraph of body-part nodes and attachment edges, with a
// small control circuit of gates and wires on every node.
package genotype

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

// ScopeKind selects which node a wire endpoint lives on.
type ScopeKind int

const (
	// ScopeCurrent addresses the node owning the wire.
	ScopeCurrent ScopeKind = iota
	// ScopeChild addresses the target of one of the owning node's outgoing edges.
	ScopeChild
)

func (k ScopeKind) String() string {
	if k == ScopeChild {
		return "CHILD"
	}
	return "CURRENT"
}

// Scope is the node half of a wire address. Index is the child slot and is
// zero for ScopeCurrent.
type Scope struct {
	Kind  ScopeKind
	Index int
}

// Current returns the scope of the owning node.
func Current() Scope { return Scope{Kind: ScopeCurrent} }

// Child returns the scope of the node reached through outgoing edge slot i.
func Child(i int) Scope { return Scope{Kind: ScopeChild, Index: i} }

// Category selects which gate set of a node a wire endpoint lives in.
type Category int

const (
	// Sensor gates report the angle of the node's child joints, one per limb.
	Sensor Category = iota
	// Effector gates drive the motors of the node's child joints, one per limb.
	Effector
	// Control gates are the node's own GateNodes.
	Control
	numCategories
)

func (c Category) String() string {
	switch c {
	case Sensor:
		return "SENSOR"
	case Effector:
		return "EFFECTOR"
	case Control:
		return "CONTROL"
	}
	return "UNKNOWN"
}

// GateRef is the gate half of a wire address.
type GateRef struct {
	Category Category
	Index    int
}

// Wire connects the gate owning it with the addressed gate. Direction +1
// makes the owning gate the source, -1 makes the addressed gate the source.
type Wire struct {
	Scope     Scope
	Gate      GateRef
	Direction int
}

// GateNode is one control element on a node.
type GateNode struct {
	Name   string
	Params []float64
	Wires  []Wire
}

// Node describes one body part.
type Node struct {
	Color r3.Vec
	Shape geom.Shape
	Gates []GateNode
}

// Edge attaches the target node's subtree to the source node.
//
// Points, axes and normals are in the unscaled local frame of their side:
// S* on the source body, T* on the target body. Rot, Scale and Reflect apply
// to the whole subtree rooted at Target.
type Edge struct {
	Source, Target int

	Rot     quat.Number
	Scale   float64
	Reflect int

	SPoint, TPoint r3.Vec
	SAxis, TAxis   r3.Vec
	SNorm, TNorm   r3.Vec

	Strength  float64
	Stiffness float64
}

// Graph is a genotype: root index, nodes and per-node outgoing edges.
// len(Edges) == len(Nodes) for any normalized graph.
type Graph struct {
	Root  int
	Nodes []Node
	Edges [][]Edge
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := &Graph{Root: g.Root}
	if g.Nodes != nil {
		c.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			c.Nodes[i] = n.clone()
		}
	}
	if g.Edges != nil {
		c.Edges = make([][]Edge, len(g.Edges))
		for i, list := range g.Edges {
			if list != nil {
				c.Edges[i] = append([]Edge(nil), list...)
			}
		}
	}
	return c
}

func (n Node) clone() Node {
	out := n
	if n.Gates != nil {
		out.Gates = make([]GateNode, len(n.Gates))
		for i, gn := range n.Gates {
			out.Gates[i] = GateNode{
				Name:   gn.Name,
				Params: cloneFloats(gn.Params),
				Wires:  cloneWires(gn.Wires),
			}
		}
	}
	return out
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}

func cloneWires(v []Wire) []Wire {
	if v == nil {
		return nil
	}
	return append([]Wire(nil), v...)
}

// AddNode appends a node with an empty edge list and returns its index.
func (g *Graph) AddNode(n Node) int {
	g.Nodes = append(g.Nodes, n)
	for len(g.Edges) < len(g.Nodes) {
		g.Edges = append(g.Edges, nil)
	}
	return len(g.Nodes) - 1
}

// AddEdge appends e to the adjacency list of e.Source and returns its slot.
func (g *Graph) AddEdge(e Edge) int {
	g.Edges[e.Source] = append(g.Edges[e.Source], e)
	return len(g.Edges[e.Source]) - 1
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, list := range g.Edges {
		n += len(list)
	}
	return n
}

// GateCount returns the total number of gate nodes.
func (g *Graph) GateCount() int {
	n := 0
	for _, node := range g.Nodes {
		n += len(node.Gates)
	}
	return n
}

// WireCount returns the total number of wires.
func (g *Graph) WireCount() int {
	n := 0
	for _, node := range g.Nodes {
		for _, gn := range node.Gates {
			n += len(gn.Wires)
		}
	}
	return n
}

// CategorySize returns how many gates of category c node i exposes in the
// genotype: one sensor and one effector per outgoing edge, and its own gates.
func (g *Graph) CategorySize(i int, c Category) int {
	switch c {
	case Sensor, Effector:
		return len(g.Edges[i])
	case Control:
		return len(g.Nodes[i].Gates)
	}
	return 0
}

// Resolve returns the node and gate index addressed by w when owned by node
// i, with indices taken modulo live counts. ok is false when the scope or
// category is empty.
func (g *Graph) Resolve(i int, w Wire) (node, gate int, ok bool) {
	node = i
	if w.Scope.Kind == ScopeChild {
		edges := g.Edges[i]
		if len(edges) == 0 {
			return 0, 0, false
		}
		node = edges[Mod(w.Scope.Index, len(edges))].Target
		if node < 0 || node >= len(g.Nodes) {
			return 0, 0, false
		}
	}
	size := g.CategorySize(node, w.Gate.Category)
	if size == 0 {
		return 0, 0, false
	}
	return node, Mod(w.Gate.Index, size), true
}

// Mod returns i modulo n in [0, n).
func Mod(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}
