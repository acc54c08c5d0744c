// Package lab wires the creature pipeline into a runnable experiment: physics
// world, builder, mutation engine, population, telemetry and archive storage.
package lab

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/creatures/circuit"
	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolve"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/mutation"
	"github.com/pthm-cable/creatures/phenotype"
	"github.com/pthm-cable/creatures/physics"
	"github.com/pthm-cable/creatures/storage"
	"github.com/pthm-cable/creatures/telemetry"
)

// Options configures a lab run.
type Options struct {
	Seed      int64         // RNG seed (0 = time-based)
	OutputDir string        // CSV and config output (empty = disabled)
	Store     storage.Store // Archive persistence (nil = disabled)
	Resume    bool          // Seed the population from the store's latest run
	LogStats  bool          // Log generation and step stats via slog
}

// Lab holds the complete experiment state.
type Lab struct {
	cfg   *config.Config
	rng   *rand.Rand
	seed  int64
	runID string

	world   *physics.Counter
	groups  *physics.GroupPool
	builder *phenotype.Builder
	engine  *mutation.Engine
	test    *evolve.FitnessTest
	pop     *evolve.Population
	timer   *telemetry.StepTimer

	outputManager *telemetry.OutputManager
	store         storage.Store
	logStats      bool

	tick      int
	savedGen  int
	lastStats telemetry.GenerationStats
}

// New creates a lab from cfg. The store, if any, must already be initialized.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Lab, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	l := &Lab{
		cfg:      cfg,
		rng:      rng,
		seed:     seed,
		runID:    uuid.NewString(),
		store:    opts.Store,
		logStats: opts.LogStats,
	}

	reg := circuit.NewDefaultRegistry()
	l.world = physics.NewCounter(physics.NewSim(cfg.Physics))
	l.groups = physics.NewGroupPool(cfg.Physics.MaxGroups)
	l.builder = &phenotype.Builder{
		Registry: reg,
		World:    l.world,
		Groups:   l.groups,
		Density:  cfg.Physics.Density,
		Drive:    physics.DriveSpring,
	}
	norm := genotype.NewNormalizer(reg, cfg.Genotype, rng)
	l.engine = mutation.NewEngine(reg, norm, cfg.Mutation, rng)
	l.test = evolve.NewFitnessTest(l.builder, cfg)
	l.pop = evolve.NewPopulation(cfg.Population, l.test, l.engine, rng)
	l.pop.SetRunID(l.runID)

	l.timer = telemetry.NewStepTimer(cfg.Telemetry.StepTimerWindow)
	l.pop.SetTimer(l.timer)

	if opts.Resume && l.store != nil {
		l.resume(ctx)
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output manager: %w", err)
	}
	l.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}
	l.registerHooks()

	slog.Info("lab created",
		"run_id", l.runID,
		"seed", seed,
		"population", len(l.pop.Individuals()),
		"round_seconds", cfg.Derived.RoundSeconds,
		"output_dir", opts.OutputDir,
	)
	return l, nil
}

// Update advances the experiment by one tick. When a generation completes,
// its archive is saved to the store.
func (l *Lab) Update(ctx context.Context) error {
	if err := l.pop.Update(); err != nil {
		return err
	}
	l.tick++
	if gen := l.pop.Generation(); gen != l.savedGen {
		l.savedGen = gen
		l.saveArchive(ctx)
	}
	return nil
}

// Run updates until maxGenerations have completed (0 = unlimited) or ctx is
// cancelled.
func (l *Lab) Run(ctx context.Context, maxGenerations int) error {
	for maxGenerations <= 0 || l.pop.Generation() < maxGenerations {
		if err := ctx.Err(); err != nil {
			slog.Info("run interrupted", "generation", l.pop.Generation(), "tick", l.tick)
			return nil
		}
		if err := l.Update(ctx); err != nil {
			return err
		}
	}
	slog.Info("generation limit reached", "generation", l.pop.Generation(), "tick", l.tick)
	return nil
}

// Close stops the running rollout and flushes output.
func (l *Lab) Close() error {
	l.pop.Close()
	if best, ok := l.pop.Archive().Best(); ok {
		if err := l.outputManager.WriteBest(best.Genotype); err != nil {
			slog.Error("failed to write best genotype", "error", err)
		}
	}
	if n, m := l.world.LiveBodies(), l.world.LiveJoints(); n != 0 || m != 0 {
		slog.Warn("world not empty after close", "bodies", n, "joints", m)
	}
	return l.outputManager.Close()
}

// Tick returns the number of updates so far.
func (l *Lab) Tick() int { return l.tick }

// RunID returns the identifier used for output and storage.
func (l *Lab) RunID() string { return l.runID }

// Seed returns the RNG seed in use.
func (l *Lab) Seed() int64 { return l.seed }

// Population returns the evolving population.
func (l *Lab) Population() *evolve.Population { return l.pop }

// LastStats returns the statistics of the most recent generation.
func (l *Lab) LastStats() telemetry.GenerationStats { return l.lastStats }

// World returns the counting physics world.
func (l *Lab) World() *physics.Counter { return l.world }
