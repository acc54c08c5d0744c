package phenotype

import (
	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/physics"
)

// JointSensor broadcasts the angle of one joint.
type JointSensor struct {
	circuit.Ports
	world physics.World
	joint physics.JointID
}

// Update reads the joint angle. A joint the world no longer knows reads as 0.
func (s *JointSensor) Update() {
	angle, err := s.world.JointAngle(s.joint)
	if err != nil {
		angle = 0
	}
	s.Broadcast(angle)
}

// JointEffector drives one joint motor with the sum of its inputs and
// passes the applied signal on to its outputs.
type JointEffector struct {
	circuit.Ports
	world physics.World
	joint physics.JointID
}

func (e *JointEffector) Update() {
	var signal float64
	for i := range e.NumInputs() {
		signal += e.In(i)
	}
	if err := e.world.DriveJoint(e.joint, signal); err != nil {
		signal = 0
	}
	e.Broadcast(signal)
}
