// Package physics defines the rigid-body collaborator that creatures are
// built in, a pool of collision groups, and a small reference simulator.
package physics

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

var (
	// ErrRefused is returned when the world declines to create a body or joint.
	ErrRefused = errors.New("physics: creation refused")
	// ErrUnknownBody is returned for a handle that is not alive.
	ErrUnknownBody = errors.New("physics: unknown body")
	// ErrUnknownJoint is returned for a handle that is not alive.
	ErrUnknownJoint = errors.New("physics: unknown joint")
	// ErrJointsAttached is returned when a body is destroyed before its joints.
	ErrJointsAttached = errors.New("physics: body still has joints")
)

// BodyID is an opaque rigid body handle.
type BodyID uint64

// JointID is an opaque joint handle.
type JointID uint64

// BodyDesc describes a rigid body to create.
type BodyDesc struct {
	Shape   geom.Shape
	Pose    geom.Pose
	Density float64
	Group   Group
}

// DriveMode selects how a joint motor interprets its signal.
type DriveMode int

const (
	// DriveVelocity treats the signal as a target angular speed.
	DriveVelocity DriveMode = iota
	// DriveSpring treats the signal as a target angle pulled by a spring.
	DriveSpring
)

// JointDesc describes a hinge between two bodies. Anchors, axes and normals
// are in each body's local frame.
type JointDesc struct {
	BodyA, BodyB     BodyID
	AnchorA, AnchorB r3.Vec
	AxisA, AxisB     r3.Vec
	NormA, NormB     r3.Vec
	Drive            DriveMode
	Strength         float64
	Stiffness        float64
}

// StepStats are the per-step counts reported by a world.
type StepStats struct {
	Actors   int
	Joints   int
	Contacts int
}

// World is the physics collaborator.
type World interface {
	CreateBody(BodyDesc) (BodyID, error)
	DestroyBody(BodyID) error
	CreateJoint(JointDesc) (JointID, error)
	// DestroyJoint must be called before destroying either connected body.
	DestroyJoint(JointID) error

	BodyPose(BodyID) (geom.Pose, error)
	JointAngle(JointID) (float64, error)
	// DriveJoint sets the motor signal applied on subsequent steps.
	DriveJoint(JointID, float64) error
	JointBroken(JointID) (bool, error)

	Step(dt float64) StepStats
	Stats() StepStats
}
