// Package phenotype expands genotype graphs into physical creatures: rigid
// bodies and joints in a physics world plus the control circuit driving them.
package phenotype

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/physics"
)

// BodyPart is one instantiated node. Parts reference each other and their
// gates by index into the owning Creature.
type BodyPart struct {
	Node   int // genotype node index
	Body   physics.BodyID
	Shape  geom.Shape // scaled shape the body was created with
	Scale  float64
	Parent int // part index, -1 for the root
	Joint  int // joint to the parent, -1 for the root

	Limbs []int // child part indices in build order

	Controls  []int // circuit gate per genotype gate node
	Sensors   []int // joint sensor per limb
	Effectors []int // joint effector per limb
}

// Joint links a limb to its parent part.
type Joint struct {
	ID     physics.JointID
	Parent int
	Child  int
}

// Creature owns every body, joint and gate built from one genotype.
type Creature struct {
	Parts  []BodyPart
	Joints []Joint

	circuit   circuit.Circuit
	world     physics.World
	groups    *physics.GroupPool
	group     physics.Group
	destroyed bool
}

// Group returns the collision group shared by every part.
func (c *Creature) Group() physics.Group { return c.group }

// Circuit returns the control circuit.
func (c *Creature) Circuit() *circuit.Circuit { return &c.circuit }

// PartCount returns the number of body parts.
func (c *Creature) PartCount() int { return len(c.Parts) }

// JointCount returns the number of joints.
func (c *Creature) JointCount() int { return len(c.Joints) }

// Update runs the control circuit once. Sensors sample joint angles and
// effectors set motor signals for the next physics step.
func (c *Creature) Update() {
	if c.destroyed {
		return
	}
	c.circuit.Update()
}

// RootPose returns the current pose of the root part.
func (c *Creature) RootPose() (geom.Pose, error) {
	if c.destroyed || len(c.Parts) == 0 {
		return geom.Pose{}, physics.ErrUnknownBody
	}
	return c.world.BodyPose(c.Parts[0].Body)
}

// Broken reports whether any joint has broken.
func (c *Creature) Broken() bool {
	if c.destroyed {
		return false
	}
	for _, j := range c.Joints {
		if broken, err := c.world.JointBroken(j.ID); err != nil || broken {
			return true
		}
	}
	return false
}

// Destroy releases the creature's joints, then its bodies, then its
// collision group. Calling it again is a no-op.
func (c *Creature) Destroy() error {
	if c.destroyed {
		return nil
	}
	c.destroyed = true
	err := c.release(0, 0)
	c.circuit.Reset()
	c.groups.Release(c.group)
	return err
}

// release destroys joints from index joints and parts from index parts
// onward, newest first, and shrinks the arena to those sizes.
func (c *Creature) release(parts, joints int) error {
	var errs []error
	for i := len(c.Joints) - 1; i >= joints; i-- {
		if err := c.world.DestroyJoint(c.Joints[i].ID); err != nil {
			errs = append(errs, fmt.Errorf("destroy joint %d: %w", c.Joints[i].ID, err))
		}
	}
	for i := len(c.Parts) - 1; i >= parts; i-- {
		if err := c.world.DestroyBody(c.Parts[i].Body); err != nil {
			errs = append(errs, fmt.Errorf("destroy body %d: %w", c.Parts[i].Body, err))
		}
	}
	c.Joints = c.Joints[:joints]
	c.Parts = c.Parts[:parts]
	return errors.Join(errs...)
}

// resolve maps a symbolic wire owned by part pi to a circuit gate index.
// Child scope picks a built limb and category indices are taken modulo
// the live member count. ok is false when the scope or category is empty.
func (c *Creature) resolve(pi int, w genotype.Wire) (int, bool) {
	part := &c.Parts[pi]
	if w.Scope.Kind == genotype.ScopeChild {
		if len(part.Limbs) == 0 {
			return 0, false
		}
		part = &c.Parts[part.Limbs[genotype.Mod(w.Scope.Index, len(part.Limbs))]]
	}
	var members []int
	switch w.Gate.Category {
	case genotype.Sensor:
		members = part.Sensors
	case genotype.Effector:
		members = part.Effectors
	default:
		members = part.Controls
	}
	if len(members) == 0 {
		return 0, false
	}
	return members[genotype.Mod(w.Gate.Index, len(members))], true
}
