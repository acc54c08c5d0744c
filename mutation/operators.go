package mutation

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/genotype"
)

// wireReach bounds the raw indices drawn for new or re-addressed wires.
// Normalization reduces them modulo the live counts.
const wireReach = 4

func (m *Engine) gauss() float64 {
	return m.rng.NormFloat64() * m.rates.Sigma
}

func (m *Engine) jitterVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X + m.gauss(), Y: v.Y + m.gauss(), Z: v.Z + m.gauss()}
}

// jitterScale multiplies v by a log-normal factor.
func (m *Engine) jitterScale(v float64) float64 {
	return v * math.Exp(m.gauss())
}

func (m *Engine) randomUnit() r3.Vec {
	v := r3.Vec{X: m.rng.NormFloat64(), Y: m.rng.NormFloat64(), Z: m.rng.NormFloat64()}
	return geom.UnitVec(v, r3.Vec{X: 1})
}

func (m *Engine) uniform(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}

// nodesWith returns the indices of nodes for which ok holds.
func nodesWith(g *genotype.Graph, ok func(i int) bool) []int {
	var out []int
	for i := range g.Nodes {
		if ok(i) {
			out = append(out, i)
		}
	}
	return out
}

func (m *Engine) pick(candidates []int) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[m.rng.IntN(len(candidates))], true
}

func (m *Engine) jitterNodes(g *genotype.Graph) {
	for i := range g.Nodes {
		if !m.chance(m.rates.Rate) {
			continue
		}
		n := &g.Nodes[i]
		n.Color = m.jitterVec(n.Color)
		n.Shape.Size = r3.Vec{
			X: m.jitterScale(n.Shape.Size.X),
			Y: m.jitterScale(n.Shape.Size.Y),
			Z: m.jitterScale(n.Shape.Size.Z),
		}
		n.Shape.Radius = m.jitterScale(n.Shape.Radius)
		n.Shape.Length = m.jitterScale(n.Shape.Length)
	}
}

type edgeMove struct {
	node, edge, to int
}

func (m *Engine) jitterEdges(g *genotype.Graph) {
	r := m.rates
	var moves []edgeMove
	for i := range g.Edges {
		for j := range g.Edges[i] {
			e := &g.Edges[i][j]
			if m.chance(r.Rate) {
				spin := geom.AxisAngle(m.randomUnit(), m.rng.NormFloat64()*r.AngleSigma)
				e.Rot = quat.Mul(e.Rot, spin)
			}
			if m.chance(r.Rate) {
				e.Scale = m.jitterScale(e.Scale)
			}
			if m.chance(r.ReflectRate) {
				e.Reflect = -e.Reflect
			}
			if m.chance(r.Rate) {
				e.SPoint = m.jitterVec(e.SPoint)
				e.TPoint = m.jitterVec(e.TPoint)
				e.SAxis = m.jitterVec(e.SAxis)
				e.TAxis = m.jitterVec(e.TAxis)
				e.SNorm = m.jitterVec(e.SNorm)
				e.TNorm = m.jitterVec(e.TNorm)
			}
			if m.chance(r.Rate) {
				e.Strength = m.jitterScale(e.Strength)
				e.Stiffness = m.jitterScale(e.Stiffness)
			}
			if m.chance(r.RetargetRate) {
				e.Target = m.rng.IntN(len(g.Nodes))
			}
			if m.chance(r.RetargetRate) {
				moves = append(moves, edgeMove{node: i, edge: j, to: m.rng.IntN(len(g.Nodes))})
			}
		}
	}
	// Newest first, so swap-removal never disturbs a pending index.
	for k := len(moves) - 1; k >= 0; k-- {
		mv := moves[k]
		e := g.Edges[mv.node][mv.edge]
		g.RemoveEdge(mv.node, mv.edge)
		e.Source = mv.to
		g.AddEdge(e)
	}
}

func (m *Engine) jitterGates(g *genotype.Graph) {
	for i := range g.Nodes {
		for gi := range g.Nodes[i].Gates {
			gn := &g.Nodes[i].Gates[gi]
			switch {
			case m.chance(m.rates.GateSwapRate):
				gn.Name = m.registry.RandomName(m.rng)
				f, _ := m.registry.Lookup(gn.Name)
				gn.Params = f.RandomParams(m.rng)
			case m.chance(m.rates.Rate):
				if f, ok := m.registry.Lookup(gn.Name); ok {
					gn.Params = f.Perturb(gn.Params, m.rates.Sigma, m.rng)
				}
			}
		}
	}
}

func (m *Engine) jitterWires(g *genotype.Graph) {
	for i := range g.Nodes {
		for gi := range g.Nodes[i].Gates {
			wires := g.Nodes[i].Gates[gi].Wires
			for wi := range wires {
				if m.chance(m.rates.Rate) {
					wires[wi].Direction = -wires[wi].Direction
				}
				if m.chance(m.rates.RewireRate) {
					wires[wi] = m.randomWire(wires[wi].Direction)
				}
			}
		}
	}
}

func (m *Engine) randomWire(direction int) genotype.Wire {
	scope := genotype.Current()
	if m.rng.IntN(2) == 1 {
		scope = genotype.Child(m.rng.IntN(wireReach))
	}
	return genotype.Wire{
		Scope: scope,
		Gate: genotype.GateRef{
			Category: genotype.Category(m.rng.IntN(3)),
			Index:    m.rng.IntN(wireReach),
		},
		Direction: direction,
	}
}

func (m *Engine) randomNode() genotype.Node {
	b := m.norm.Bounds()
	lo, hi := b.MinDimension, math.Min(b.MaxDimension, 1)
	if hi < lo {
		hi = lo
	}
	n := genotype.Node{Color: r3.Vec{X: m.rng.Float64(), Y: m.rng.Float64(), Z: m.rng.Float64()}}
	switch m.rng.IntN(3) {
	case 0:
		n.Shape = geom.Box(m.uniform(lo, hi), m.uniform(lo, hi), m.uniform(lo, hi))
	case 1:
		n.Shape = geom.Sphere(m.uniform(lo, hi))
	default:
		n.Shape = geom.Capsule(m.uniform(lo, hi), m.uniform(lo, hi))
	}
	return n
}

func (m *Engine) randomEdge(src, nodes int) genotype.Edge {
	b := m.norm.Bounds()
	reflect := 1
	if m.rng.IntN(2) == 1 {
		reflect = -1
	}
	return genotype.Edge{
		Source:    src,
		Target:    m.rng.IntN(nodes),
		Rot:       geom.AxisAngle(m.randomUnit(), m.uniform(-math.Pi, math.Pi)),
		Scale:     m.uniform(math.Max(b.MinScale, 0.5), math.Max(b.MinScale, 1)),
		Reflect:   reflect,
		SPoint:    m.randomUnit(),
		TPoint:    m.randomUnit(),
		SAxis:     m.randomUnit(),
		TAxis:     m.randomUnit(),
		SNorm:     m.randomUnit(),
		TNorm:     m.randomUnit(),
		Strength:  m.uniform(b.MinStrength, b.MaxStrength),
		Stiffness: m.uniform(b.MinStiffness, b.MaxStiffness),
	}
}

func (m *Engine) addNode(g *genotype.Graph) {
	g.AddNode(m.randomNode())
}

func (m *Engine) addEdge(g *genotype.Graph) {
	if len(g.Nodes) == 0 {
		return
	}
	g.AddEdge(m.randomEdge(m.rng.IntN(len(g.Nodes)), len(g.Nodes)))
}

func (m *Engine) addGate(g *genotype.Graph) {
	if len(g.Nodes) == 0 || m.registry.Len() == 0 {
		return
	}
	name := m.registry.RandomName(m.rng)
	f, _ := m.registry.Lookup(name)
	n := &g.Nodes[m.rng.IntN(len(g.Nodes))]
	n.Gates = append(n.Gates, genotype.GateNode{Name: name, Params: f.RandomParams(m.rng)})
}

func (m *Engine) addWire(g *genotype.Graph) {
	i, ok := m.pick(nodesWith(g, func(i int) bool { return len(g.Nodes[i].Gates) > 0 }))
	if !ok {
		return
	}
	gates := g.Nodes[i].Gates
	gn := &gates[m.rng.IntN(len(gates))]
	direction := 1
	if m.rng.IntN(2) == 1 {
		direction = -1
	}
	gn.Wires = append(gn.Wires, m.randomWire(direction))
}

func (m *Engine) removeNode(g *genotype.Graph) {
	if len(g.Nodes) <= 1 {
		return
	}
	g.RemoveNode(m.rng.IntN(len(g.Nodes)))
}

func (m *Engine) removeEdge(g *genotype.Graph) {
	i, ok := m.pick(nodesWith(g, func(i int) bool { return i < len(g.Edges) && len(g.Edges[i]) > 0 }))
	if !ok {
		return
	}
	g.RemoveEdge(i, m.rng.IntN(len(g.Edges[i])))
}

func (m *Engine) removeGate(g *genotype.Graph) {
	i, ok := m.pick(nodesWith(g, func(i int) bool { return len(g.Nodes[i].Gates) > 0 }))
	if !ok {
		return
	}
	g.RemoveGate(i, m.rng.IntN(len(g.Nodes[i].Gates)))
}

func (m *Engine) removeWire(g *genotype.Graph) {
	type slot struct{ node, gate int }
	var slots []slot
	for i, n := range g.Nodes {
		for gi, gn := range n.Gates {
			if len(gn.Wires) > 0 {
				slots = append(slots, slot{i, gi})
			}
		}
	}
	if len(slots) == 0 {
		return
	}
	s := slots[m.rng.IntN(len(slots))]
	g.RemoveWire(s.node, s.gate, m.rng.IntN(len(g.Nodes[s.node].Gates[s.gate].Wires)))
}
