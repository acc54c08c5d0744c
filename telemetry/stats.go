// Package telemetry provides generation statistics, step timing and experiment output.
package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one generation.
type GenerationStats struct {
	RunID       string `csv:"run_id"`
	Generation  int    `csv:"generation"`
	Individuals int    `csv:"individuals"`

	// Fitness distribution over the generation
	FitnessMean float64 `csv:"fitness_mean"`
	FitnessStd  float64 `csv:"fitness_std"`
	FitnessP10  float64 `csv:"fitness_p10"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`
	FitnessMax  float64 `csv:"fitness_max"`
	ArchiveBest float64 `csv:"archive_best"`

	// Genotype size totals across the population
	Nodes int `csv:"nodes"`
	Edges int `csv:"edges"`
	Gates int `csv:"gates"`
	Wires int `csv:"wires"`

	// Rollouts ended by a broken joint, collapse or failed build
	Aborted int `csv:"aborted"`

	StepMeanUS float64 `csv:"step_mean_us"`
}

// RolloutRecord describes one finished fitness rollout.
type RolloutRecord struct {
	Generation int     `csv:"generation"`
	Index      int     `csv:"index"`
	Fitness    float64 `csv:"fitness"`
	Ticks      int     `csv:"ticks"`
	Reason     string  `csv:"reason"`
	Parts      int     `csv:"parts"`
	Joints     int     `csv:"joints"`
}

// Percentile returns the p-th empirical quantile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(min(max(p, 0), 1), stat.Empirical, sorted, nil)
}

// ComputeFitnessStats calculates mean, std, percentiles and max of values.
func ComputeFitnessStats(values []float64) (mean, std, p10, p50, p90, best float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		std = stat.StdDev(sorted, nil)
	}
	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, std, p10, p50, p90, sorted[len(sorted)-1]
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("individuals", s.Individuals),
		slog.Float64("fitness_mean", s.FitnessMean),
		slog.Float64("fitness_std", s.FitnessStd),
		slog.Float64("fitness_p50", s.FitnessP50),
		slog.Float64("fitness_max", s.FitnessMax),
		slog.Float64("archive_best", s.ArchiveBest),
		slog.Int("nodes", s.Nodes),
		slog.Int("gates", s.Gates),
		slog.Int("aborted", s.Aborted),
		slog.Float64("step_mean_us", s.StepMeanUS),
	)
}

// LogValue implements slog.LogValuer for structured logging.
func (r RolloutRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", r.Generation),
		slog.Int("index", r.Index),
		slog.Float64("fitness", r.Fitness),
		slog.Int("ticks", r.Ticks),
		slog.String("reason", r.Reason),
		slog.Int("parts", r.Parts),
		slog.Int("joints", r.Joints),
	)
}
