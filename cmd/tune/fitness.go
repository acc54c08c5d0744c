package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolve"
	"github.com/pthm-cable/creatures/lab"
)

// FitnessEvaluator runs short evolution runs and scores mutation settings.
type FitnessEvaluator struct {
	params      *ParamVector
	generations int
	seeds       []int64
	baseConfig  *config.Config

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestEntry   *evolve.ArchiveEntry
	lastMean    float64 // final generation mean from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, generations int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		generations: generations,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestEntry returns the best creature seen across all evaluations.
func (fe *FitnessEvaluator) BestEntry() *evolve.ArchiveEntry {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestEntry
}

// LastMean returns the final generation mean fitness from the most recent evaluation.
func (fe *FitnessEvaluator) LastMean() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMean
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	best     evolve.ArchiveEntry
	found    bool
	lastMean float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated archive best plus half the final generation mean,
// averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runEvolution(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var total, totalMean float64
	var best *evolve.ArchiveEntry
	for i := range results {
		r := &results[i]
		total += computeFitness(r)
		totalMean += r.lastMean
		if r.found && (best == nil || r.best.Fitness > best.Fitness) {
			best = &r.best
		}
	}
	n := float64(len(fe.seeds))
	avg := total / n

	fe.mu.Lock()
	if avg < fe.bestFitness {
		fe.bestFitness = avg
	}
	if best != nil && (fe.bestEntry == nil || best.Fitness > fe.bestEntry.Fitness) {
		fe.bestEntry = best
	}
	fe.lastMean = totalMean / n
	fe.mu.Unlock()

	return avg
}

// runEvolution executes one headless run without output or storage.
func (fe *FitnessEvaluator) runEvolution(cfg *config.Config, seed int64) seedResult {
	runCfg := *cfg
	ctx := context.Background()
	l, err := lab.New(ctx, &runCfg, lab.Options{Seed: seed})
	if err != nil {
		slog.Error("failed to create lab", "seed", seed, "error", err)
		return seedResult{}
	}
	if err := l.Run(ctx, fe.generations); err != nil {
		slog.Error("evolution run failed", "seed", seed, "error", err)
	}
	if err := l.Close(); err != nil {
		slog.Error("failed to close lab", "seed", seed, "error", err)
	}

	var r seedResult
	r.best, r.found = l.Population().Archive().Best()
	r.lastMean = l.LastStats().FitnessMean
	return r
}

// copyConfig returns a copy of the base config. Config holds no shared
// references, so a value copy is deep.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
func computeFitness(r *seedResult) float64 {
	if !r.found {
		return 0
	}
	return -(r.best.Fitness + 0.5*r.lastMean)
}
