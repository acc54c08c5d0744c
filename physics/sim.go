package physics

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/geom"
)

var up = r3.Vec{Y: 1}

// contactSlop is how far above the ground a body still counts as touching it.
const contactSlop = 1e-6

// bodyState is the integrated state of a rigid body.
type bodyState struct {
	Pose    geom.Pose
	Prev    r3.Vec
	Vel     r3.Vec
	InvMass float64
}

// bodyInfo is the static description of a rigid body.
type bodyInfo struct {
	ID     BodyID
	Shape  geom.Shape
	Group  Group
	Joints int // attached joints, must be zero to destroy
}

// jointState is a motorized hinge between two body entities.
type jointState struct {
	ID               JointID
	A, B             ecs.Entity
	AnchorA, AnchorB r3.Vec
	Axis             r3.Vec      // hinge axis in A's frame
	Rest             quat.Number // B's rotation relative to A at zero angle
	Drive            DriveMode
	Strength         float64
	Stiffness        float64
	Signal           float64
	Angle            float64
	Broken           bool
}

// Sim is a small position-based rigid-body world on an ECS. Bodies collide
// with the ground plane only; joints are hinges whose angle is driven by a
// motor and whose anchors are pulled together every solver pass.
type Sim struct {
	cfg   config.PhysicsConfig
	world *ecs.World

	bodyMapper  *ecs.Map2[bodyState, bodyInfo]
	jointMapper *ecs.Map1[jointState]
	bodyFilter  *ecs.Filter2[bodyState, bodyInfo]
	jointFilter *ecs.Filter1[jointState]
	stateMap    *ecs.Map1[bodyState]
	infoMap     *ecs.Map1[bodyInfo]

	bodies    map[BodyID]ecs.Entity
	joints    map[JointID]ecs.Entity
	nextBody  BodyID
	nextJoint JointID
	stats     StepStats
}

// NewSim creates an empty world.
func NewSim(cfg config.PhysicsConfig) *Sim {
	world := ecs.NewWorld()
	return &Sim{
		cfg:         cfg,
		world:       world,
		bodyMapper:  ecs.NewMap2[bodyState, bodyInfo](world),
		jointMapper: ecs.NewMap1[jointState](world),
		bodyFilter:  ecs.NewFilter2[bodyState, bodyInfo](world),
		jointFilter: ecs.NewFilter1[jointState](world),
		stateMap:    ecs.NewMap1[bodyState](world),
		infoMap:     ecs.NewMap1[bodyInfo](world),
		bodies:      make(map[BodyID]ecs.Entity),
		joints:      make(map[JointID]ecs.Entity),
	}
}

// CreateBody adds a rigid body. It refuses invalid shapes, non-finite poses,
// non-positive density, bodies entirely below the ground, and bodies past capacity.
func (s *Sim) CreateBody(d BodyDesc) (BodyID, error) {
	if s.cfg.MaxBodies > 0 && len(s.bodies) >= s.cfg.MaxBodies {
		return 0, fmt.Errorf("%w: body capacity %d reached", ErrRefused, s.cfg.MaxBodies)
	}
	if !d.Shape.Valid() {
		return 0, fmt.Errorf("%w: invalid shape", ErrRefused)
	}
	if !d.Pose.Finite() {
		return 0, fmt.Errorf("%w: non-finite pose", ErrRefused)
	}
	if !(d.Density > 0) || math.IsInf(d.Density, 0) {
		return 0, fmt.Errorf("%w: density %v", ErrRefused, d.Density)
	}
	pose := geom.Pose{Pos: d.Pose.Pos, Rot: geom.UnitQuat(d.Pose.Rot)}
	if pose.Pos.Y+extent(d.Shape, pose.Rot) < s.cfg.GroundHeight {
		return 0, fmt.Errorf("%w: body below ground", ErrRefused)
	}

	s.nextBody++
	id := s.nextBody
	state := bodyState{
		Pose:    pose,
		Prev:    pose.Pos,
		InvMass: 1 / (d.Density * d.Shape.Volume()),
	}
	info := bodyInfo{ID: id, Shape: d.Shape, Group: d.Group}
	s.bodies[id] = s.bodyMapper.NewEntity(&state, &info)
	return id, nil
}

// DestroyBody removes a body. All joints on it must be destroyed first.
func (s *Sim) DestroyBody(id BodyID) error {
	e, ok := s.bodies[id]
	if !ok {
		return ErrUnknownBody
	}
	if n := s.infoMap.Get(e).Joints; n > 0 {
		return fmt.Errorf("%w: %d", ErrJointsAttached, n)
	}
	s.world.RemoveEntity(e)
	delete(s.bodies, id)
	return nil
}

// CreateJoint connects two distinct bodies with a motorized hinge.
func (s *Sim) CreateJoint(d JointDesc) (JointID, error) {
	if s.cfg.MaxJoints > 0 && len(s.joints) >= s.cfg.MaxJoints {
		return 0, fmt.Errorf("%w: joint capacity %d reached", ErrRefused, s.cfg.MaxJoints)
	}
	a, okA := s.bodies[d.BodyA]
	b, okB := s.bodies[d.BodyB]
	if !okA || !okB {
		return 0, ErrUnknownBody
	}
	if d.BodyA == d.BodyB {
		return 0, fmt.Errorf("%w: joint to self", ErrRefused)
	}
	if !geom.FiniteVec(d.AnchorA) || !geom.FiniteVec(d.AnchorB) {
		return 0, fmt.Errorf("%w: non-finite anchor", ErrRefused)
	}

	rotA := s.stateMap.Get(a).Pose.Rot
	rotB := s.stateMap.Get(b).Pose.Rot
	s.nextJoint++
	id := s.nextJoint
	j := jointState{
		ID:        id,
		A:         a,
		B:         b,
		AnchorA:   d.AnchorA,
		AnchorB:   d.AnchorB,
		Axis:      geom.UnitVec(d.AxisA, up),
		Rest:      geom.UnitQuat(quat.Mul(quat.Conj(rotA), rotB)),
		Drive:     d.Drive,
		Strength:  d.Strength,
		Stiffness: d.Stiffness,
	}
	s.joints[id] = s.jointMapper.NewEntity(&j)
	s.infoMap.Get(a).Joints++
	s.infoMap.Get(b).Joints++
	return id, nil
}

// DestroyJoint removes a joint and releases its hold on both bodies.
func (s *Sim) DestroyJoint(id JointID) error {
	e, ok := s.joints[id]
	if !ok {
		return ErrUnknownJoint
	}
	j := s.jointMapper.Get(e)
	for _, b := range [2]ecs.Entity{j.A, j.B} {
		if s.world.Alive(b) {
			s.infoMap.Get(b).Joints--
		}
	}
	s.world.RemoveEntity(e)
	delete(s.joints, id)
	return nil
}

// BodyPose returns the current pose of a body.
func (s *Sim) BodyPose(id BodyID) (geom.Pose, error) {
	e, ok := s.bodies[id]
	if !ok {
		return geom.Pose{}, ErrUnknownBody
	}
	return s.stateMap.Get(e).Pose, nil
}

// JointAngle returns the hinge angle in radians.
func (s *Sim) JointAngle(id JointID) (float64, error) {
	e, ok := s.joints[id]
	if !ok {
		return 0, ErrUnknownJoint
	}
	return s.jointMapper.Get(e).Angle, nil
}

// DriveJoint sets the motor signal. Non-finite signals are treated as zero.
func (s *Sim) DriveJoint(id JointID, signal float64) error {
	e, ok := s.joints[id]
	if !ok {
		return ErrUnknownJoint
	}
	if math.IsNaN(signal) || math.IsInf(signal, 0) {
		signal = 0
	}
	s.jointMapper.Get(e).Signal = signal
	return nil
}

// JointBroken reports whether a joint's anchors drifted apart past the break distance.
func (s *Sim) JointBroken(id JointID) (bool, error) {
	e, ok := s.joints[id]
	if !ok {
		return false, ErrUnknownJoint
	}
	return s.jointMapper.Get(e).Broken, nil
}

// Step advances the world by dt seconds.
func (s *Sim) Step(dt float64) StepStats {
	s.stats = StepStats{Actors: len(s.bodies), Joints: len(s.joints)}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return s.stats
	}

	s.driveMotors(dt)
	s.predict(dt)
	iterations := max(s.cfg.Iterations, 1)
	for range iterations {
		s.solveJoints()
		s.stats.Contacts = s.solveGround()
	}
	s.integrateVelocity(dt)
	return s.stats
}

// Stats returns the counts from the last step.
func (s *Sim) Stats() StepStats {
	return s.stats
}

func (s *Sim) driveMotors(dt float64) {
	query := s.jointFilter.Query()
	for query.Next() {
		j := query.Get()
		if j.Broken {
			continue
		}
		switch j.Drive {
		case DriveSpring:
			target := geom.Clamp(j.Signal, -1, 1) * math.Pi / 2
			rate := math.Min(1, j.Stiffness*dt)
			j.Angle += (target - j.Angle) * rate
		default:
			speed := math.Min(s.cfg.MaxMotorSpeed, j.Strength)
			j.Angle += geom.Clamp(j.Signal, -1, 1) * speed * dt
		}
		j.Angle = math.Remainder(j.Angle, 2*math.Pi)
	}
}

func (s *Sim) predict(dt float64) {
	query := s.bodyFilter.Query()
	for query.Next() {
		st, _ := query.Get()
		st.Vel.Y -= s.cfg.Gravity * dt
		st.Prev = st.Pose.Pos
		st.Pose.Pos = r3.Add(st.Pose.Pos, r3.Scale(dt, st.Vel))
	}
}

func (s *Sim) solveJoints() {
	query := s.jointFilter.Query()
	for query.Next() {
		j := query.Get()
		if j.Broken {
			continue
		}
		a := s.stateMap.Get(j.A)
		b := s.stateMap.Get(j.B)

		b.Pose.Rot = geom.UnitQuat(quat.Mul(quat.Mul(a.Pose.Rot, geom.AxisAngle(j.Axis, j.Angle)), j.Rest))

		delta := r3.Sub(a.Pose.Apply(j.AnchorA), b.Pose.Apply(j.AnchorB))
		if r3.Norm(delta) > s.cfg.BreakDistance {
			j.Broken = true
			continue
		}
		total := a.InvMass + b.InvMass
		if total == 0 {
			continue
		}
		a.Pose.Pos = r3.Sub(a.Pose.Pos, r3.Scale(a.InvMass/total, delta))
		b.Pose.Pos = r3.Add(b.Pose.Pos, r3.Scale(b.InvMass/total, delta))
	}
}

func (s *Sim) solveGround() int {
	contacts := 0
	query := s.bodyFilter.Query()
	for query.Next() {
		st, info := query.Get()
		bottom := st.Pose.Pos.Y - extent(info.Shape, st.Pose.Rot)
		if bottom > s.cfg.GroundHeight+contactSlop {
			continue
		}
		contacts++
		if bottom >= s.cfg.GroundHeight {
			continue
		}
		st.Pose.Pos.Y += s.cfg.GroundHeight - bottom
		keep := 1 - geom.Clamp(s.cfg.Friction, 0, 1)
		st.Pose.Pos.X = st.Prev.X + (st.Pose.Pos.X-st.Prev.X)*keep
		st.Pose.Pos.Z = st.Prev.Z + (st.Pose.Pos.Z-st.Prev.Z)*keep
	}
	return contacts
}

func (s *Sim) integrateVelocity(dt float64) {
	query := s.bodyFilter.Query()
	for query.Next() {
		st, _ := query.Get()
		st.Vel = r3.Scale(1/dt, r3.Sub(st.Pose.Pos, st.Prev))
	}
}

// extent is the half height of a shape under rotation rot.
func extent(shape geom.Shape, rot quat.Number) float64 {
	return shape.Support(geom.Rotate(quat.Conj(rot), up))
}
