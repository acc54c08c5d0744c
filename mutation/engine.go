// Package mutation implements the stochastic operators that vary genotypes
// between generations and the generator for random founders.
package mutation

import (
	"errors"
	"math/rand/v2"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
)

// ErrNotImplemented is returned by the recombination extension points.
var ErrNotImplemented = errors.New("mutation: not implemented")

// Engine applies mutation operators to genotype copies. Every result is
// normalized before it is returned.
type Engine struct {
	registry *circuit.Registry
	norm     *genotype.Normalizer
	rates    config.MutationConfig
	rng      *rand.Rand
}

// NewEngine creates a mutation engine.
func NewEngine(reg *circuit.Registry, norm *genotype.Normalizer, rates config.MutationConfig, rng *rand.Rand) *Engine {
	if rates.MaxRepeats < 1 {
		rates.MaxRepeats = 1
	}
	return &Engine{registry: reg, norm: norm, rates: rates, rng: rng}
}

// Rates returns the operator probabilities in use.
func (m *Engine) Rates() config.MutationConfig { return m.rates }

// SetRates replaces the operator probabilities.
func (m *Engine) SetRates(rates config.MutationConfig) {
	if rates.MaxRepeats < 1 {
		rates.MaxRepeats = 1
	}
	m.rates = rates
}

// Normalize repairs g in place with the engine's normalizer.
func (m *Engine) Normalize(g *genotype.Graph) {
	m.norm.Normalize(g)
}

// Mutate returns a mutated, normalized copy of g. g is not modified.
func (m *Engine) Mutate(g *genotype.Graph) *genotype.Graph {
	c := g.Clone()
	r := m.rates

	m.jitterNodes(c)
	m.jitterEdges(c)
	m.jitterGates(c)
	m.jitterWires(c)

	m.repeat(r.AddNode, func() { m.addNode(c) })
	m.repeat(r.AddEdge, func() { m.addEdge(c) })
	m.repeat(r.AddGate, func() { m.addGate(c) })
	m.repeat(r.AddWire, func() { m.addWire(c) })

	m.repeat(r.RemoveWire, func() { m.removeWire(c) })
	m.repeat(r.RemoveGate, func() { m.removeGate(c) })
	m.repeat(r.RemoveEdge, func() { m.removeEdge(c) })
	m.repeat(r.RemoveNode, func() { m.removeNode(c) })

	if m.chance(r.RootRate) && len(c.Nodes) > 0 {
		c.Root = m.rng.IntN(len(c.Nodes))
	}

	m.norm.Normalize(c)
	return c
}

// RandomCreature builds a founder with between one and the given number of
// nodes, and between one and the given numbers of edges, gates and wires.
// A count below one skips that operator.
func (m *Engine) RandomCreature(nodes, edges, gates, wires int) *genotype.Graph {
	g := &genotype.Graph{}
	for range m.upTo(max(nodes, 1), 1) {
		m.addNode(g)
	}
	for range m.upTo(edges, 1) {
		m.addEdge(g)
	}
	for range m.upTo(gates, 1) {
		m.addGate(g)
	}
	for range m.upTo(wires, 1) {
		m.addWire(g)
	}
	m.norm.Normalize(g)
	return g
}

// Crossover is an extension point for recombining two parents.
func (m *Engine) Crossover(a, b *genotype.Graph) (*genotype.Graph, error) {
	return nil, ErrNotImplemented
}

// Graft is an extension point for attaching a subtree of b onto a.
func (m *Engine) Graft(a, b *genotype.Graph) (*genotype.Graph, error) {
	return nil, ErrNotImplemented
}

func (m *Engine) chance(p float64) bool {
	return p > 0 && m.rng.Float64() < p
}

// repeat runs op while a Bernoulli trial with probability p succeeds,
// at most MaxRepeats times.
func (m *Engine) repeat(p float64, op func()) {
	for i := 0; i < m.rates.MaxRepeats && m.chance(p); i++ {
		op()
	}
}

// upTo returns a count in [lo, n], or 0 when n < lo.
func (m *Engine) upTo(n, lo int) int {
	if n < lo {
		return 0
	}
	return lo + m.rng.IntN(n-lo+1)
}
