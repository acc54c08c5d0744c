package genotype

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/geom"
)

// Normalizer repairs any graph into one satisfying the genotype invariants.
// Normalize is idempotent: a second pass changes nothing.
type Normalizer struct {
	registry *circuit.Registry
	bounds   config.GenotypeConfig
	rng      *rand.Rand
}

// NewNormalizer creates a normalizer. rng is only consulted when a gate name
// is unregistered and has to be replaced.
func NewNormalizer(reg *circuit.Registry, bounds config.GenotypeConfig, rng *rand.Rand) *Normalizer {
	return &Normalizer{registry: reg, bounds: bounds, rng: rng}
}

// Registry returns the gate registry used for name repair.
func (n *Normalizer) Registry() *circuit.Registry { return n.registry }

// Bounds returns the enforced dimension and actuation bounds.
func (n *Normalizer) Bounds() config.GenotypeConfig { return n.bounds }

// DefaultNode returns the node inserted into an empty graph.
func (n *Normalizer) DefaultNode() Node {
	h := geom.Clamp(0.5, n.bounds.MinDimension, n.bounds.MaxDimension)
	return Node{
		Color: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5},
		Shape: geom.Box(h, h, h),
	}
}

// Normalize repairs g in place.
func (n *Normalizer) Normalize(g *Graph) {
	if len(g.Nodes) == 0 {
		g.Nodes = []Node{n.DefaultNode()}
	}
	if len(g.Edges) > len(g.Nodes) {
		g.Edges = g.Edges[:len(g.Nodes)]
	}
	for len(g.Edges) < len(g.Nodes) {
		g.Edges = append(g.Edges, nil)
	}
	g.Root = Mod(g.Root, len(g.Nodes))

	for i := range g.Nodes {
		n.normalizeNode(&g.Nodes[i])
	}

	// Edges need final node shapes; wires need final edge and gate counts.
	for i := range g.Edges {
		for j := range g.Edges[i] {
			n.normalizeEdge(g, i, &g.Edges[i][j])
		}
		if len(g.Edges[i]) == 0 {
			g.Edges[i] = nil
		}
	}

	for i := range g.Nodes {
		gates := g.Nodes[i].Gates
		for gi := range gates {
			n.normalizeGate(&gates[gi])
		}
	}
	for i := range g.Nodes {
		gates := g.Nodes[i].Gates
		for gi := range gates {
			for wi := range gates[gi].Wires {
				n.normalizeWire(g, i, gi, &gates[gi].Wires[wi])
			}
		}
	}
}

func (n *Normalizer) normalizeNode(node *Node) {
	node.Color = r3.Vec{
		X: geom.Clamp(node.Color.X, 0, 1),
		Y: geom.Clamp(node.Color.Y, 0, 1),
		Z: geom.Clamp(node.Color.Z, 0, 1),
	}

	lo, hi := n.bounds.MinDimension, n.bounds.MaxDimension
	s := node.Shape
	switch s.Kind {
	case geom.ShapeSphere:
		node.Shape = geom.Sphere(geom.Clamp(s.Radius, lo, hi))
	case geom.ShapeCapsule:
		node.Shape = geom.Capsule(geom.Clamp(s.Length, lo, hi), geom.Clamp(s.Radius, lo, hi))
	default:
		node.Shape = geom.Box(
			geom.Clamp(s.Size.X, lo, hi),
			geom.Clamp(s.Size.Y, lo, hi),
			geom.Clamp(s.Size.Z, lo, hi),
		)
	}

	if n.registry == nil || n.registry.Len() == 0 || len(node.Gates) == 0 {
		node.Gates = nil
	}
}

func (n *Normalizer) normalizeEdge(g *Graph, src int, e *Edge) {
	b := n.bounds
	e.Source = src
	e.Target = Mod(e.Target, len(g.Nodes))
	e.Rot = geom.UnitQuat(e.Rot)
	e.Scale = geom.Clamp(e.Scale, b.MinScale, b.MaxScale)
	if e.Reflect < 0 {
		e.Reflect = -1
	} else {
		e.Reflect = 1
	}
	e.Strength = geom.Clamp(e.Strength, b.MinStrength, b.MaxStrength)
	e.Stiffness = geom.Clamp(e.Stiffness, b.MinStiffness, b.MaxStiffness)

	e.SPoint, e.SAxis, e.SNorm = attachment(g.Nodes[src].Shape, e.SPoint, e.SAxis, e.SNorm)
	e.TPoint, e.TAxis, e.TNorm = attachment(g.Nodes[e.Target].Shape, e.TPoint, e.TAxis, e.TNorm)
}

// attachment projects an attachment point onto the body surface and derives
// the joint frame there. The axis is the requested axis projected into the
// face's tangent plane, or the face's canonical tangent when that projection
// vanishes. The normal is the requested normal made perpendicular to the
// axis, or the face normal.
func attachment(s geom.Shape, p, axis, norm r3.Vec) (r3.Vec, r3.Vec, r3.Vec) {
	p = s.ClosestSurfacePoint(p)
	face := s.SurfaceNormal(p)
	axis = geom.UnitVec(geom.Orthogonalize(axis, face), s.FaceTangent(p))
	norm = geom.UnitVec(geom.Orthogonalize(norm, axis), face)
	return p, axis, norm
}

func (n *Normalizer) normalizeGate(gn *GateNode) {
	name := strings.ToLower(strings.TrimSpace(gn.Name))
	f, ok := n.registry.Lookup(name)
	if !ok {
		name = n.registry.RandomName(n.rng)
		f, _ = n.registry.Lookup(name)
		gn.Params = f.RandomParams(n.rng)
	}
	gn.Name = name
	gn.Params = f.Normalize(gn.Params)
	if len(gn.Params) == 0 {
		gn.Params = nil
	}
	if len(gn.Wires) == 0 {
		gn.Wires = nil
	}
}

func (n *Normalizer) normalizeWire(g *Graph, node, gi int, w *Wire) {
	if w.Direction < 0 {
		w.Direction = -1
	} else {
		w.Direction = 1
	}
	w.Scope.Kind = ScopeKind(Mod(int(w.Scope.Kind), 2))
	w.Gate.Category = Category(Mod(int(w.Gate.Category), int(numCategories)))
	if w.Scope.Kind == ScopeCurrent {
		w.Scope.Index = 0
	}

	if _, gate, ok := g.Resolve(node, *w); ok {
		if w.Scope.Kind == ScopeChild {
			w.Scope.Index = Mod(w.Scope.Index, len(g.Edges[node]))
		}
		w.Gate.Index = gate
		return
	}
	*w = Wire{
		Scope:     Current(),
		Gate:      GateRef{Category: Control, Index: gi},
		Direction: w.Direction,
	}
}
