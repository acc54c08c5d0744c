package mutation

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
)

func newTestEngine(t *testing.T, seed uint64, edit func(*config.MutationConfig)) (*Engine, *genotype.Normalizer) {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("config defaults: %v", err)
	}
	reg := circuit.NewDefaultRegistry()
	rng := rand.New(rand.NewPCG(seed, 7))
	norm := genotype.NewNormalizer(reg, cfg.Genotype, rng)
	rates := cfg.Mutation
	if edit != nil {
		edit(&rates)
	}
	return NewEngine(reg, norm, rates, rng), norm
}

func checkValid(t *testing.T, g *genotype.Graph, step int) {
	t.Helper()
	if g.NodeCount() == 0 {
		t.Fatalf("step %d: no nodes", step)
	}
	if len(g.Edges) != len(g.Nodes) {
		t.Fatalf("step %d: %d edge lists for %d nodes", step, len(g.Edges), len(g.Nodes))
	}
	if g.Root < 0 || g.Root >= g.NodeCount() {
		t.Fatalf("step %d: root %d out of range", step, g.Root)
	}
	for i, edges := range g.Edges {
		for _, e := range edges {
			if e.Source != i || e.Target < 0 || e.Target >= g.NodeCount() {
				t.Fatalf("step %d: bad edge %d->%d in list %d", step, e.Source, e.Target, i)
			}
		}
	}
	for i, n := range g.Nodes {
		for gi, gn := range n.Gates {
			for _, w := range gn.Wires {
				if _, _, ok := g.Resolve(i, w); ok {
					continue
				}
				self := genotype.Wire{Scope: genotype.Current(), Gate: genotype.GateRef{Category: genotype.Control, Index: gi}, Direction: w.Direction}
				if w != self {
					t.Fatalf("step %d: unresolvable wire %+v on node %d", step, w, i)
				}
			}
		}
	}
}

func TestMutateIndexValidity(t *testing.T) {
	m, norm := newTestEngine(t, 1, func(r *config.MutationConfig) {
		r.Rate, r.ReflectRate, r.RetargetRate, r.GateSwapRate, r.RewireRate, r.RootRate = 0.5, 0.5, 0.5, 0.3, 0.5, 0.3
		r.AddNode, r.AddEdge, r.AddGate, r.AddWire = 0.5, 0.6, 0.6, 0.7
		r.RemoveNode, r.RemoveEdge, r.RemoveGate, r.RemoveWire = 0.5, 0.5, 0.5, 0.5
		r.MaxRepeats = 4
	})
	g := m.RandomCreature(5, 3, 3, 2)
	for step := range 500 {
		g = m.Mutate(g)
		checkValid(t, g, step)

		again := g.Clone()
		norm.Normalize(again)
		if !reflect.DeepEqual(g, again) {
			t.Fatalf("step %d: mutation result is not normalized", step)
		}
	}
}

func TestMutateLeavesInputAlone(t *testing.T) {
	m, _ := newTestEngine(t, 2, func(r *config.MutationConfig) {
		r.Rate, r.RetargetRate, r.AddEdge, r.RemoveNode = 1, 1, 1, 1
	})
	g := m.RandomCreature(4, 3, 3, 2)
	before, err := g.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	m.Mutate(g)
	after, _ := g.MarshalText()
	if string(before) != string(after) {
		t.Error("Mutate modified its input")
	}
}

func TestRemoveNodeKeepsOne(t *testing.T) {
	m, _ := newTestEngine(t, 3, func(r *config.MutationConfig) {
		r.RemoveNode = 1
		r.MaxRepeats = 100
	})
	g := m.RandomCreature(5, 3, 3, 2)
	for step := range 20 {
		g = m.Mutate(g)
		if g.NodeCount() < 1 {
			t.Fatalf("step %d: genotype has no nodes", step)
		}
	}
	if g.NodeCount() != 1 {
		t.Errorf("node count = %d, want 1 after repeated removal", g.NodeCount())
	}
}

// TestAddGateGrowsPopulation mutates a population once with gate creation
// certain and deletion off: every individual gains at least one gate.
func TestAddGateGrowsPopulation(t *testing.T) {
	m, _ := newTestEngine(t, 4, func(r *config.MutationConfig) {
		r.AddGate = 1
		r.RemoveNode, r.RemoveEdge, r.RemoveGate, r.RemoveWire = 0, 0, 0, 0
	})
	const size = 25
	pop := make([]*genotype.Graph, size)
	before := 0
	for i := range pop {
		pop[i] = m.RandomCreature(4, 3, 3, 2)
		before += pop[i].GateCount()
	}
	after := 0
	for i := range pop {
		child := m.Mutate(pop[i])
		if child.GateCount() <= pop[i].GateCount() {
			t.Errorf("individual %d: gates %d -> %d", i, pop[i].GateCount(), child.GateCount())
		}
		after += child.GateCount()
	}
	if after < before+size {
		t.Errorf("total gates %d -> %d, want at least +%d", before, after, size)
	}
}

func TestRandomCreatureBounds(t *testing.T) {
	m, _ := newTestEngine(t, 5, nil)
	for i := range 200 {
		g := m.RandomCreature(5, 3, 3, 2)
		checkValid(t, g, i)
		if g.NodeCount() < 1 || g.NodeCount() > 5 {
			t.Errorf("creature %d: %d nodes, want 1..5", i, g.NodeCount())
		}
		if g.EdgeCount() > 3 || g.GateCount() > 3 || g.WireCount() > 2 {
			t.Errorf("creature %d: %d edges %d gates %d wires exceed bounds", i, g.EdgeCount(), g.GateCount(), g.WireCount())
		}
	}
}

func TestRecombinationNotImplemented(t *testing.T) {
	m, _ := newTestEngine(t, 6, nil)
	a := m.RandomCreature(2, 1, 1, 1)
	b := m.RandomCreature(2, 1, 1, 1)
	if _, err := m.Crossover(a, b); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Crossover error = %v, want ErrNotImplemented", err)
	}
	if _, err := m.Graft(a, b); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Graft error = %v, want ErrNotImplemented", err)
	}
}

func BenchmarkMutate(b *testing.B) {
	cfg, _ := config.Defaults()
	reg := circuit.NewDefaultRegistry()
	rng := rand.New(rand.NewPCG(9, 9))
	norm := genotype.NewNormalizer(reg, cfg.Genotype, rng)
	m := NewEngine(reg, norm, cfg.Mutation, rng)
	g := m.RandomCreature(5, 3, 3, 2)
	for i := 0; i < b.N; i++ {
		g = m.Mutate(g)
	}
}
