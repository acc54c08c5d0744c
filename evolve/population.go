package evolve

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/mutation"
	"github.com/pthm-cable/creatures/phenotype"
	"github.com/pthm-cable/creatures/telemetry"
)

// Individual is one genotype and its fitness in the current generation.
type Individual struct {
	Genotype *genotype.Graph
	Fitness  float64
}

// Population evaluates its individuals one rollout at a time and breeds the
// next generation once all of them have been scored.
type Population struct {
	cfg     config.PopulationConfig
	test    *FitnessTest
	engine  *mutation.Engine
	archive *Archive
	rng     *rand.Rand

	individuals []Individual
	current     int
	generation  int
	aborted     int

	runID        string
	timer        *telemetry.StepTimer
	onRollout    []func(telemetry.RolloutRecord)
	onGeneration []func(telemetry.GenerationStats)
}

// NewPopulation creates cfg.Size random founders.
func NewPopulation(cfg config.PopulationConfig, test *FitnessTest, engine *mutation.Engine, rng *rand.Rand) *Population {
	p := &Population{
		cfg:         cfg,
		test:        test,
		engine:      engine,
		archive:     NewArchive(cfg.ArchiveSize),
		rng:         rng,
		individuals: make([]Individual, max(cfg.Size, 1)),
	}
	for i := range p.individuals {
		p.individuals[i].Genotype = p.randomCreature()
	}
	return p
}

func (p *Population) randomCreature() *genotype.Graph {
	return p.engine.RandomCreature(p.cfg.MaxNodes, p.cfg.MaxEdges, p.cfg.MaxGates, p.cfg.MaxWires)
}

// Seed replaces the first individuals with normalized copies of gs.
// Extra genotypes are ignored and nil entries keep their random founder.
func (p *Population) Seed(gs []*genotype.Graph) int {
	n := 0
	for i, g := range gs {
		if i >= len(p.individuals) {
			break
		}
		if g == nil {
			continue
		}
		c := g.Clone()
		p.engine.Normalize(c)
		p.individuals[i] = Individual{Genotype: c}
		n++
	}
	return n
}

// SetRunID tags emitted statistics.
func (p *Population) SetRunID(id string) { p.runID = id }

// SetTimer attaches the step timer whose mean feeds generation statistics.
func (p *Population) SetTimer(t *telemetry.StepTimer) {
	p.timer = t
	p.test.SetTimer(t)
}

// OnRollout registers fn to receive every finished rollout.
func (p *Population) OnRollout(fn func(telemetry.RolloutRecord)) {
	p.onRollout = append(p.onRollout, fn)
}

// OnGeneration registers fn to receive statistics after every generation.
func (p *Population) OnGeneration(fn func(telemetry.GenerationStats)) {
	p.onGeneration = append(p.onGeneration, fn)
}

// Generation returns the number of completed generations.
func (p *Population) Generation() int { return p.generation }

// Archive returns the best-of-all-time archive.
func (p *Population) Archive() *Archive { return p.archive }

// Individuals returns the current generation.
func (p *Population) Individuals() []Individual { return p.individuals }

// Current returns the index of the individual being evaluated.
func (p *Population) Current() int { return p.current }

// Update performs one tick: it starts the next rollout, advances the running
// one, or records a finished one and, after the last individual, breeds the
// next generation. Only failures that would leak resources are returned.
func (p *Population) Update() error {
	if !p.test.Running() {
		err := p.test.Start(p.individuals[p.current].Genotype)
		if err != nil {
			if !errors.Is(err, phenotype.ErrRootRefused) {
				return fmt.Errorf("start rollout %d: %w", p.current, err)
			}
			slog.Debug("build failed", "generation", p.generation, "index", p.current, "error", err)
		}
		if p.test.Running() {
			return nil
		}
	} else if p.test.Update() {
		return nil
	}
	p.finishRollout()
	return nil
}

// Close stops any rollout in progress.
func (p *Population) Close() {
	p.test.Stop()
}

func (p *Population) finishRollout() {
	res := p.test.Result()
	p.individuals[p.current].Fitness = res.Fitness
	if res.Reason.Aborted() {
		p.aborted++
	}

	rec := telemetry.RolloutRecord{
		Generation: p.generation,
		Index:      p.current,
		Fitness:    res.Fitness,
		Ticks:      res.Ticks,
		Reason:     string(res.Reason),
		Parts:      res.Parts,
		Joints:     res.Joints,
	}
	slog.Debug("rollout", "rollout", rec)
	for _, fn := range p.onRollout {
		fn(rec)
	}

	p.current++
	if p.current == len(p.individuals) {
		p.nextGeneration()
	}
}

func (p *Population) nextGeneration() {
	for _, ind := range p.individuals {
		p.archive.Consider(ind.Genotype, ind.Fitness, p.generation)
	}

	stats := p.stats()
	for _, fn := range p.onGeneration {
		fn(stats)
	}

	next := make([]Individual, len(p.individuals))
	for i, parent := range p.selectParents(len(next)) {
		next[i] = Individual{Genotype: p.engine.Mutate(p.individuals[parent].Genotype)}
	}
	p.individuals = next
	p.current = 0
	p.aborted = 0
	p.generation++
}

// selectParents draws n parent indices with replacement, each with
// probability proportional to its fitness. Negative fitness counts as zero
// and a zero total falls back to uniform sampling.
func (p *Population) selectParents(n int) []int {
	weights := make([]float64, len(p.individuals))
	var total float64
	for i, ind := range p.individuals {
		if ind.Fitness > 0 && !math.IsInf(ind.Fitness, 0) {
			weights[i] = ind.Fitness
			total += ind.Fitness
		}
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
	}

	sampler := sampleuv.NewWeighted(weights, p.rng)
	parents := make([]int, n)
	for i := range parents {
		idx, ok := sampler.Take()
		if !ok {
			idx = p.rng.IntN(len(weights))
		} else {
			// Put it back so the draw is with replacement.
			sampler.Reweight(idx, weights[idx])
		}
		parents[i] = idx
	}
	return parents
}

func (p *Population) stats() telemetry.GenerationStats {
	fitness := make([]float64, len(p.individuals))
	s := telemetry.GenerationStats{
		RunID:       p.runID,
		Generation:  p.generation,
		Individuals: len(p.individuals),
		ArchiveBest: p.archive.TopFitness(),
		Aborted:     p.aborted,
	}
	for i, ind := range p.individuals {
		fitness[i] = ind.Fitness
		s.Nodes += ind.Genotype.NodeCount()
		s.Edges += ind.Genotype.EdgeCount()
		s.Gates += ind.Genotype.GateCount()
		s.Wires += ind.Genotype.WireCount()
	}
	s.FitnessMean, s.FitnessStd, s.FitnessP10, s.FitnessP50, s.FitnessP90, s.FitnessMax = telemetry.ComputeFitnessStats(fitness)
	if p.timer != nil {
		s.StepMeanUS = float64(p.timer.Stats().AvgTick.Microseconds())
	}
	return s
}
