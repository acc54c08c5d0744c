package phenotype

import (
	"errors"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/physics"
)

var startPose = geom.At(r3.Vec{Y: 2})

// refusing fails the n-th body or joint creation when the matching
// predicate returns true. Refused calls never reach the wrapped world.
type refusing struct {
	physics.World
	bodies, joints int
	refuseBody     func(n int) bool
	refuseJoint    func(n int) bool
}

func (r *refusing) CreateBody(d physics.BodyDesc) (physics.BodyID, error) {
	r.bodies++
	if r.refuseBody != nil && r.refuseBody(r.bodies) {
		return 0, physics.ErrRefused
	}
	return r.World.CreateBody(d)
}

func (r *refusing) CreateJoint(d physics.JointDesc) (physics.JointID, error) {
	r.joints++
	if r.refuseJoint != nil && r.refuseJoint(r.joints) {
		return 0, physics.ErrRefused
	}
	return r.World.CreateJoint(d)
}

type testEnv struct {
	cfg     *config.Config
	sim     *physics.Sim
	counter *physics.Counter
	world   *refusing
	groups  *physics.GroupPool
	builder *Builder
	norm    *genotype.Normalizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("config defaults: %v", err)
	}
	cfg.Physics.MaxBodies = 64
	cfg.Physics.MaxJoints = 64
	reg := circuit.NewDefaultRegistry()
	e := &testEnv{cfg: cfg, sim: physics.NewSim(cfg.Physics), groups: physics.NewGroupPool(4)}
	e.counter = physics.NewCounter(e.sim)
	e.world = &refusing{World: e.counter}
	e.builder = &Builder{Registry: reg, World: e.world, Groups: e.groups, Density: 1}
	e.norm = genotype.NewNormalizer(reg, cfg.Genotype, rand.New(rand.NewPCG(1, 1)))
	return e
}

func (e *testEnv) checkReleased(t *testing.T) {
	t.Helper()
	if e.counter.LiveBodies() != 0 || e.counter.LiveJoints() != 0 {
		t.Errorf("leaked %d bodies and %d joints", e.counter.LiveBodies(), e.counter.LiveJoints())
	}
	if e.groups.InUse() != 0 {
		t.Errorf("leaked %d collision groups", e.groups.InUse())
	}
}

func boxNode() genotype.Node {
	return genotype.Node{Color: r3.Vec{X: 1}, Shape: geom.Box(0.5, 0.5, 0.5)}
}

// sideEdge attaches target to the +X face of the source, unrotated.
func sideEdge(target int, scale float64) genotype.Edge {
	return genotype.Edge{
		Target:    target,
		Rot:       geom.IdentityQuat,
		Scale:     scale,
		Reflect:   1,
		SPoint:    r3.Vec{X: 1},
		TPoint:    r3.Vec{X: -1},
		SAxis:     r3.Vec{Y: 1},
		TAxis:     r3.Vec{Y: 1},
		SNorm:     r3.Vec{Z: 1},
		TNorm:     r3.Vec{Z: 1},
		Strength:  10,
		Stiffness: 10,
	}
}

func twoCycle() *genotype.Graph {
	g := &genotype.Graph{}
	g.AddNode(boxNode())
	g.AddNode(boxNode())
	g.AddEdge(withSource(sideEdge(1, 0.5), 0))
	g.AddEdge(withSource(sideEdge(0, 0.5), 1))
	return g
}

func withSource(e genotype.Edge, src int) genotype.Edge {
	e.Source = src
	return e
}

func TestSingleNode(t *testing.T) {
	e := newTestEnv(t)
	g := &genotype.Graph{Nodes: []genotype.Node{boxNode()}}
	e.norm.Normalize(g)

	c, err := e.builder.Build(g, startPose)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.PartCount() != 1 || c.JointCount() != 0 {
		t.Errorf("built %d parts and %d joints, want 1 and 0", c.PartCount(), c.JointCount())
	}
	if c.Parts[0].Parent != -1 || c.Parts[0].Joint != -1 {
		t.Errorf("root part = %+v", c.Parts[0])
	}
	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	e.checkReleased(t)
}

// TestTwoCycle expands A->B->A. The path A->B->A' ends at A' because the
// edge A->B is already on its path, giving two joints over three parts.
func TestTwoCycle(t *testing.T) {
	e := newTestEnv(t)
	g := twoCycle()
	e.norm.Normalize(g)

	c, err := e.builder.Build(g, startPose)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.JointCount() != 2 {
		t.Fatalf("joints = %d, want 2", c.JointCount())
	}
	if c.PartCount() != 3 {
		t.Fatalf("parts = %d, want 3", c.PartCount())
	}
	wantNodes := []int{0, 1, 0}
	wantScale := []float64{1, 0.5, 0.25}
	for i, p := range c.Parts {
		if p.Node != wantNodes[i] || p.Scale != wantScale[i] {
			t.Errorf("part %d = node %d scale %v, want node %d scale %v", i, p.Node, p.Scale, wantNodes[i], wantScale[i])
		}
	}

	// Child B sits on the +X face of A: 0.5 + 0.5*0.5 along X.
	pose, err := e.world.BodyPose(c.Parts[1].Body)
	if err != nil {
		t.Fatal(err)
	}
	if d := r3.Norm(r3.Sub(pose.Pos, r3.Vec{X: 0.75, Y: 2})); d > 1e-9 {
		t.Errorf("child placed at %v, want (0.75, 2, 0)", pose.Pos)
	}
	if len(c.Parts[0].Sensors) != 1 || len(c.Parts[0].Effectors) != 1 {
		t.Errorf("root has %d sensors and %d effectors, want 1 each", len(c.Parts[0].Sensors), len(c.Parts[0].Effectors))
	}
	for i, p := range c.Parts {
		if len(p.Sensors) != len(p.Limbs) || len(p.Effectors) != len(p.Limbs) {
			t.Errorf("part %d: %d limbs but %d sensors and %d effectors", i, len(p.Limbs), len(p.Sensors), len(p.Effectors))
		}
		for _, ci := range p.Limbs {
			if c.Parts[ci].Parent != i {
				t.Errorf("limb %d of part %d has parent %d", ci, i, c.Parts[ci].Parent)
			}
		}
	}

	c.Destroy()
	e.checkReleased(t)
}

// expectedParts counts the tree an edge-simple expansion produces.
func expectedParts(g *genotype.Graph, node int, path map[[2]int]bool) int {
	n := 1
	for ei, e := range g.Edges[node] {
		key := [2]int{node, ei}
		if path[key] {
			continue
		}
		path[key] = true
		n += expectedParts(g, e.Target, path)
		delete(path, key)
	}
	return n
}

func TestCyclesTerminate(t *testing.T) {
	e := newTestEnv(t)
	g := &genotype.Graph{}
	g.AddNode(boxNode())
	g.AddNode(boxNode())
	g.AddEdge(withSource(sideEdge(0, 0.9), 0))
	g.AddEdge(withSource(sideEdge(0, 0.8), 0))
	g.AddEdge(withSource(sideEdge(1, 0.9), 0))
	g.AddEdge(withSource(sideEdge(0, 0.9), 1))
	e.norm.Normalize(g)

	want := expectedParts(g, g.Root, map[[2]int]bool{})
	c, err := e.builder.Build(g, startPose)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.PartCount() != want {
		t.Errorf("parts = %d, want %d", c.PartCount(), want)
	}
	if c.JointCount() != c.PartCount()-1 {
		t.Errorf("joints = %d for %d parts, want a tree", c.JointCount(), c.PartCount())
	}
	for i, p := range c.Parts[1:] {
		if p.Parent < 0 || p.Parent > i {
			t.Errorf("part %d has parent %d", i+1, p.Parent)
		}
	}
	c.Destroy()
	e.checkReleased(t)
}

func TestFailureInjection(t *testing.T) {
	tests := []struct {
		name        string
		refuseBody  func(int) bool
		refuseJoint func(int) bool
		wantErr     bool
		parts       int
		joints      int
	}{
		{"root refused", func(n int) bool { return n == 1 }, nil, true, 0, 0},
		{"child refused", func(n int) bool { return n == 2 }, nil, false, 1, 0},
		{"grandchild refused", func(n int) bool { return n == 3 }, nil, false, 2, 1},
		{"inner joint refused", nil, func(n int) bool { return n == 1 }, false, 2, 1},
		{"outer joint refused", nil, func(n int) bool { return n == 2 }, false, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.world.refuseBody = tt.refuseBody
			e.world.refuseJoint = tt.refuseJoint
			g := twoCycle()
			g.Nodes[0].Gates = []genotype.GateNode{{Name: "sum", Wires: []genotype.Wire{
				{Scope: genotype.Child(0), Gate: genotype.GateRef{Category: genotype.Control}, Direction: 1},
			}}}
			g.Nodes[1].Gates = []genotype.GateNode{{Name: "sin", Params: []float64{1, 0}}}
			e.norm.Normalize(g)

			c, err := e.builder.Build(g, startPose)
			if tt.wantErr {
				if !errors.Is(err, ErrRootRefused) {
					t.Fatalf("Build error = %v, want ErrRootRefused", err)
				}
				e.checkReleased(t)
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if c.PartCount() != tt.parts || c.JointCount() != tt.joints {
				t.Errorf("built %d parts and %d joints, want %d and %d", c.PartCount(), c.JointCount(), tt.parts, tt.joints)
			}
			if e.counter.LiveBodies() != c.PartCount() || e.counter.LiveJoints() != c.JointCount() {
				t.Errorf("world holds %d bodies and %d joints for %d parts and %d joints",
					e.counter.LiveBodies(), e.counter.LiveJoints(), c.PartCount(), c.JointCount())
			}
			gates := 0
			for _, p := range c.Parts {
				gates += len(p.Controls) + len(p.Sensors) + len(p.Effectors)
			}
			if gates != c.Circuit().Len() {
				t.Errorf("circuit holds %d gates, parts reference %d", c.Circuit().Len(), gates)
			}
			c.Destroy()
			e.checkReleased(t)
		})
	}
}

func TestGroupExhaustion(t *testing.T) {
	e := newTestEnv(t)
	e.builder.Groups = physics.NewGroupPool(1)
	e.groups = e.builder.Groups
	g := &genotype.Graph{Nodes: []genotype.Node{boxNode()}}
	e.norm.Normalize(g)

	first, err := e.builder.Build(g, startPose)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := e.builder.Build(g, startPose); !errors.Is(err, physics.ErrNoGroups) {
		t.Errorf("second Build = %v, want ErrNoGroups", err)
	}
	first.Destroy()
	if _, err := e.builder.Build(g, startPose); err != nil {
		t.Errorf("Build after release: %v", err)
	}
}

func TestEffectorDrivesJoint(t *testing.T) {
	e := newTestEnv(t)
	g := &genotype.Graph{}
	g.AddNode(boxNode())
	g.AddNode(boxNode())
	g.AddEdge(withSource(sideEdge(1, 1), 0))
	g.Nodes[0].Gates = []genotype.GateNode{{Name: "constant", Params: []float64{0.7}, Wires: []genotype.Wire{
		{Scope: genotype.Current(), Gate: genotype.GateRef{Category: genotype.Effector}, Direction: 1},
	}}}
	e.norm.Normalize(g)

	c, err := e.builder.Build(g, startPose)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c.Update()
	e.world.Step(0.1)
	angle, err := e.world.JointAngle(c.Joints[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if angle <= 0 {
		t.Errorf("joint angle = %v, want positive after driving", angle)
	}
	c.Destroy()
	e.checkReleased(t)
}

func randomGraph(rng *rand.Rand, names []string) *genotype.Graph {
	g := &genotype.Graph{}
	nodes := 1 + rng.IntN(3)
	for range nodes {
		n := genotype.Node{Color: r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}}
		switch rng.IntN(3) {
		case 0:
			n.Shape = geom.Box(0.2+rng.Float64(), 0.2+rng.Float64(), 0.2+rng.Float64())
		case 1:
			n.Shape = geom.Sphere(0.2 + rng.Float64())
		default:
			n.Shape = geom.Capsule(0.2+rng.Float64(), 0.2+rng.Float64())
		}
		for range rng.IntN(3) {
			gn := genotype.GateNode{Name: names[rng.IntN(len(names))]}
			for range rng.IntN(3) {
				gn.Wires = append(gn.Wires, genotype.Wire{
					Scope:     genotype.Scope{Kind: genotype.ScopeKind(rng.IntN(2)), Index: rng.IntN(3)},
					Gate:      genotype.GateRef{Category: genotype.Category(rng.IntN(3)), Index: rng.IntN(3)},
					Direction: 1 - 2*rng.IntN(2),
				})
			}
			n.Gates = append(n.Gates, gn)
		}
		g.AddNode(n)
	}
	for i := range nodes {
		for range rng.IntN(3) {
			g.AddEdge(genotype.Edge{
				Source:    i,
				Target:    rng.IntN(nodes),
				Rot:       geom.AxisAngle(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}, rng.Float64()),
				Scale:     0.5 + rng.Float64()*0.7,
				Reflect:   1 - 2*rng.IntN(2),
				SPoint:    r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()},
				TPoint:    r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()},
				SAxis:     r3.Vec{Y: 1},
				TAxis:     r3.Vec{Y: 1},
				Strength:  rng.Float64() * 20,
				Stiffness: rng.Float64() * 20,
			})
		}
	}
	return g
}

func TestResourceBalance(t *testing.T) {
	e := newTestEnv(t)
	rng := rand.New(rand.NewPCG(70, 0))
	e.world.refuseBody = func(int) bool { return rng.Float64() < 0.1 }
	e.world.refuseJoint = func(int) bool { return rng.Float64() < 0.1 }
	names := e.builder.Registry.Names()

	built := 0
	for i := range 100 {
		g := randomGraph(rng, names)
		e.norm.Normalize(g)
		c, err := e.builder.Build(g, startPose)
		if err != nil {
			if !errors.Is(err, ErrRootRefused) {
				t.Fatalf("cycle %d: Build: %v", i, err)
			}
			e.checkReleased(t)
			continue
		}
		built++
		if e.counter.LiveBodies() != c.PartCount() || e.counter.LiveJoints() != c.JointCount() {
			t.Fatalf("cycle %d: world holds %d bodies and %d joints, creature %d and %d",
				i, e.counter.LiveBodies(), e.counter.LiveJoints(), c.PartCount(), c.JointCount())
		}
		for range 30 {
			c.Update()
			e.world.Step(e.cfg.Physics.DT)
			if c.Broken() {
				break
			}
		}
		if err := c.Destroy(); err != nil {
			t.Fatalf("cycle %d: Destroy: %v", i, err)
		}
		if err := c.Destroy(); err != nil {
			t.Fatalf("cycle %d: second Destroy: %v", i, err)
		}
		e.checkReleased(t)
		if st := e.world.Step(e.cfg.Physics.DT); st.Actors != 0 || st.Joints != 0 {
			t.Fatalf("cycle %d: world still has %+v", i, st)
		}
	}
	if built == 0 {
		t.Error("no creature was built")
	}
}
