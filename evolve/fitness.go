// Package evolve runs the generational loop: single-creature fitness
// rollouts, a best-of-all-time archive and fitness-proportionate reproduction.
package evolve

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/phenotype"
	"github.com/pthm-cable/creatures/physics"
	"github.com/pthm-cable/creatures/telemetry"
)

// Reason says why a rollout ended.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonBroken      Reason = "broken"
	ReasonCollapsed   Reason = "collapsed"
	ReasonBuildFailed Reason = "build_failed"
	ReasonStopped     Reason = "stopped"
)

// Aborted reports whether the rollout ended before its full round.
func (r Reason) Aborted() bool {
	return r != ReasonTimeout
}

// Result is the outcome of one rollout.
type Result struct {
	Fitness      float64
	Displacement float64
	Ticks        int
	Reason       Reason
	Parts        int
	Joints       int
}

// FitnessTest rolls out one creature at a time and scores it by sustained
// horizontal movement of its root.
type FitnessTest struct {
	builder *phenotype.Builder
	world   physics.World
	cfg     config.FitnessConfig
	dt      float64
	every   int // ticks between baseline updates
	timer   *telemetry.StepTimer

	creature *phenotype.Creature
	running  bool
	baseline r3.Vec
	score    float64
	result   Result
}

// NewFitnessTest creates a harness stepping the builder's world by the
// configured physics timestep.
func NewFitnessTest(b *phenotype.Builder, cfg *config.Config) *FitnessTest {
	return &FitnessTest{
		builder: b,
		world:   b.World,
		cfg:     cfg.Fitness,
		dt:      cfg.Physics.DT,
		every:   cfg.Derived.BaselineEvery,
	}
}

// SetTimer attaches a step timer. A nil timer disables timing.
func (f *FitnessTest) SetTimer(t *telemetry.StepTimer) { f.timer = t }

// Start ends any rollout in progress and builds g at the start pose.
// A build failure is returned and also finishes the rollout with the floor
// fitness, so callers may treat it as an ordinary early abort.
func (f *FitnessTest) Start(g *genotype.Graph) error {
	f.Stop()
	f.score = 0
	f.result = Result{}

	c, err := f.builder.Build(g, geom.At(r3.Vec{Y: f.cfg.StartHeight}))
	if err != nil {
		f.result = Result{Fitness: f.cfg.FloorFitness, Reason: ReasonBuildFailed}
		return err
	}
	f.creature = c
	f.running = true
	f.result.Parts = c.PartCount()
	f.result.Joints = c.JointCount()

	if c.PartCount() <= 1 {
		f.finish(ReasonCollapsed, f.cfg.FloorFitness)
		return nil
	}
	pose, err := c.RootPose()
	if err != nil {
		f.finish(ReasonBroken, f.cfg.FloorFitness)
		return nil
	}
	f.baseline = pose.Pos
	return nil
}

// Update advances the rollout by one physics step and reports whether it continues.
func (f *FitnessTest) Update() bool {
	if !f.running {
		return false
	}

	f.timer.StartTick()
	f.timer.StartPhase(telemetry.PhaseControl)
	f.creature.Update()
	f.timer.StartPhase(telemetry.PhasePhysics)
	f.world.Step(f.dt)
	f.timer.StartPhase(telemetry.PhaseScoring)
	defer f.timer.EndTick()

	f.result.Ticks++
	if f.creature.Broken() {
		f.finish(ReasonBroken, f.cfg.FloorFitness)
		return false
	}
	pose, err := f.creature.RootPose()
	if err != nil || !geom.FiniteVec(pose.Pos) {
		f.finish(ReasonBroken, f.cfg.FloorFitness)
		return false
	}

	if f.result.Ticks%f.every == 0 {
		f.score += horizontal(pose.Pos, f.baseline)
		f.baseline = pose.Pos
	}
	if f.result.Ticks >= f.cfg.RoundTicks {
		f.score += horizontal(pose.Pos, f.baseline)
		f.finish(ReasonTimeout, f.score)
		return false
	}
	return true
}

// Fitness returns the final fitness, or the score so far while running.
func (f *FitnessTest) Fitness() float64 {
	if f.running {
		return f.score
	}
	return f.result.Fitness
}

// Running reports whether a rollout is in progress.
func (f *FitnessTest) Running() bool { return f.running }

// Result returns the outcome of the last rollout.
func (f *FitnessTest) Result() Result { return f.result }

// Stop destroys the live creature, if any. A rollout still in progress ends
// with the floor fitness.
func (f *FitnessTest) Stop() {
	if f.running {
		f.finish(ReasonStopped, f.cfg.FloorFitness)
	}
	f.release()
}

func (f *FitnessTest) finish(reason Reason, fitness float64) {
	f.running = false
	f.result.Reason = reason
	f.result.Fitness = fitness
	f.result.Displacement = f.score
	f.release()
}

func (f *FitnessTest) release() {
	if f.creature == nil {
		return
	}
	if err := f.creature.Destroy(); err != nil {
		slog.Warn("creature teardown failed", "error", err)
	}
	f.creature = nil
}

// horizontal returns the distance between a and b in the ground plane.
func horizontal(a, b r3.Vec) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}
