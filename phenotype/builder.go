package phenotype

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/physics"
)

// ErrRootRefused is returned when the root body of a creature cannot be built.
var ErrRootRefused = errors.New("phenotype: root body refused")

// Builder expands normalized genotypes into creatures.
type Builder struct {
	Registry *circuit.Registry
	World    physics.World
	Groups   *physics.GroupPool
	Density  float64
	Drive    physics.DriveMode
}

// visit is one edge on the path from the root to the node being expanded.
// Paths share their tails, so siblings never see each other's edges.
type visit struct {
	node, edge int
	next       *visit
}

func (v *visit) has(node, edge int) bool {
	for ; v != nil; v = v.next {
		if v.node == node && v.edge == edge {
			return true
		}
	}
	return false
}

// mark is the arena size at some point of the build.
type mark struct {
	parts, joints int
	circuit       circuit.Mark
}

type build struct {
	*Builder
	g *genotype.Graph
	c *Creature
}

// Build expands g with its root body at pose at. Branches the world refuses
// are dropped; if the root itself cannot be built nothing is left behind and
// the error wraps ErrRootRefused.
func (b *Builder) Build(g *genotype.Graph, at geom.Pose) (*Creature, error) {
	if len(g.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty genotype", ErrRootRefused)
	}
	group, err := b.Groups.Acquire()
	if err != nil {
		return nil, fmt.Errorf("build creature: %w", err)
	}
	c := &Creature{world: b.World, groups: b.Groups, group: group}
	bs := &build{Builder: b, g: g, c: c}
	if _, err := bs.expand(g.Root, at, 1, 1, nil); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("%w: %w", ErrRootRefused, err)
	}
	return c, nil
}

func (bs *build) mark() mark {
	return mark{parts: len(bs.c.Parts), joints: len(bs.c.Joints), circuit: bs.c.circuit.Mark()}
}

func (bs *build) rollback(m mark) {
	if err := bs.c.release(m.parts, m.joints); err != nil {
		slog.Warn("rollback failed", "error", err)
	}
	bs.c.circuit.Truncate(m.circuit)
}

// expand builds node at pose and, depth first, every outgoing edge not
// already on path. It returns the new part index.
func (bs *build) expand(node int, pose geom.Pose, scale float64, reflect int, path *visit) (int, error) {
	c := bs.c
	start := bs.mark()

	shape := bs.g.Nodes[node].Shape.Scaled(scale)
	body, err := bs.World.CreateBody(physics.BodyDesc{
		Shape:   shape,
		Pose:    pose,
		Density: bs.Density,
		Group:   c.group,
	})
	if err != nil {
		return -1, fmt.Errorf("node %d: %w", node, err)
	}
	pi := len(c.Parts)
	c.Parts = append(c.Parts, BodyPart{
		Node:   node,
		Body:   body,
		Shape:  shape,
		Scale:  scale,
		Parent: -1,
		Joint:  -1,
	})

	for gi, gn := range bs.g.Nodes[node].Gates {
		gate, err := bs.Registry.New(gn.Name, gn.Params)
		if err != nil {
			bs.rollback(start)
			return -1, fmt.Errorf("node %d gate %d: %w", node, gi, err)
		}
		c.Parts[pi].Controls = append(c.Parts[pi].Controls, c.circuit.Add(gate))
	}

	for ei, e := range bs.g.Edges[node] {
		if path.has(node, ei) {
			continue
		}
		childScale := scale * e.Scale
		childReflect := reflect * e.Reflect
		sPoint := r3.Scale(scale, geom.Mirror(e.SPoint, reflect))
		tPoint := r3.Scale(childScale, geom.Mirror(e.TPoint, childReflect))
		childPose := pose.
			Compose(geom.Translation(sPoint)).
			Compose(geom.Rotation(mirrorQuat(e.Rot, reflect))).
			Compose(geom.Translation(r3.Scale(-1, tPoint)))

		before := bs.mark()
		ci, err := bs.expand(e.Target, childPose, childScale, childReflect, &visit{node: node, edge: ei, next: path})
		if err != nil {
			slog.Debug("branch dropped", "node", node, "edge", ei, "error", err)
			continue
		}
		jid, err := bs.World.CreateJoint(physics.JointDesc{
			BodyA:     body,
			BodyB:     c.Parts[ci].Body,
			AnchorA:   sPoint,
			AnchorB:   tPoint,
			AxisA:     geom.Mirror(e.SAxis, reflect),
			AxisB:     geom.Mirror(e.TAxis, childReflect),
			NormA:     geom.Mirror(e.SNorm, reflect),
			NormB:     geom.Mirror(e.TNorm, childReflect),
			Drive:     bs.Drive,
			Strength:  e.Strength,
			Stiffness: e.Stiffness,
		})
		if err != nil {
			slog.Debug("joint refused", "node", node, "edge", ei, "error", err)
			bs.rollback(before)
			continue
		}

		ji := len(c.Joints)
		c.Joints = append(c.Joints, Joint{ID: jid, Parent: pi, Child: ci})
		c.Parts[ci].Parent = pi
		c.Parts[ci].Joint = ji

		part := &c.Parts[pi]
		part.Limbs = append(part.Limbs, ci)
		part.Sensors = append(part.Sensors, c.circuit.Add(&JointSensor{world: bs.World, joint: jid}))
		part.Effectors = append(part.Effectors, c.circuit.Add(&JointEffector{world: bs.World, joint: jid}))
	}

	bs.wire(pi)
	return pi, nil
}

// wire connects the gates of part pi. A wire whose address resolves to
// nothing loops back to its own gate.
func (bs *build) wire(pi int) {
	c := bs.c
	node := c.Parts[pi].Node
	for gi, gn := range bs.g.Nodes[node].Gates {
		own := c.Parts[pi].Controls[gi]
		for _, w := range gn.Wires {
			other, ok := c.resolve(pi, w)
			if !ok {
				other = own
			}
			src, dst := own, other
			if w.Direction < 0 {
				src, dst = other, own
			}
			c.circuit.Connect(src, dst)
		}
	}
}

// mirrorQuat reflects a rotation through the YZ plane when reflect is -1.
func mirrorQuat(q quat.Number, reflect int) quat.Number {
	if reflect >= 0 {
		return q
	}
	return quat.Number{Real: q.Real, Imag: q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}
