// Package main provides CMA-ES tuning of mutation rates: each candidate is
// scored by short headless evolution runs over several seeds.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
)

type options struct {
	configPath  string
	generations int
	seeds       int
	maxEvals    int
	population  int
	outputDir   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.generations, "generations", 5, "Generations per evolution run")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 100, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	debug := flag.Bool("debug", false, "Show per-run lab logs")
	flag.Parse()

	// Per-run lab logs are noise at the default level
	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Tuning progress goes to stdout regardless of the lab log level
	progress := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(opts, progress); err != nil {
		slog.Error("tuning failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, progress *slog.Logger) error {
	if opts.outputDir == "" {
		return errors.New("--output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseCfg := config.Cfg()
	baseCfg.Telemetry.OutputDir = ""

	params := NewParamVector()
	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, opts.generations, seeds, baseCfg)

	f, err := os.Create(filepath.Join(opts.outputDir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer f.Close()
	tl, err := newTuneLog(f, params, opts.maxEvals)
	if err != nil {
		return fmt.Errorf("start log: %w", err)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			improved, err := tl.record(values, fitness, evaluator.LastMean())
			if err != nil {
				slog.Warn("failed to log evaluation", "error", err)
			}
			progress.Info("evaluation",
				"eval", tl.evals,
				"of", opts.maxEvals,
				"fitness", fitness,
				"last_mean", evaluator.LastMean(),
				"best", tl.bestFitness,
				"improved", improved,
				"elapsed", tl.elapsed().String(),
				"eta", tl.eta().String(),
			)
			return fitness
		},
	}

	dim := params.Dim()
	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + 3*dim/2
	}
	progress.Info("starting tuning",
		"params", dim,
		"population", popSize,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"generations", opts.generations,
	)

	// Seeds already run in parallel, so candidates are evaluated one at a time
	result, err := optimize.Minimize(problem,
		params.Normalize(params.ExtractFromConfig(baseCfg)),
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize},
	)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	best := tl.bestParams
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return errors.New("no evaluation completed")
	}
	return writeResults(opts, progress, params, best, tl, evaluator)
}

// writeResults stores the winning config and the best creature seen by any run.
func writeResults(opts options, progress *slog.Logger, params *ParamVector, best []float64, tl *tuneLog, evaluator *FitnessEvaluator) error {
	bestCfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	params.ApplyToConfig(bestCfg, best)

	attrs := []any{"evals", tl.evals, "elapsed", tl.elapsed().String(), "best_fitness", tl.bestFitness}
	for i, s := range params.Specs {
		attrs = append(attrs, s.Path, best[i])
	}
	progress.Info("tuning complete", attrs...)

	cfgPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(cfgPath); err != nil {
		return fmt.Errorf("write best config: %w", err)
	}
	progress.Info("best config saved", "path", cfgPath)

	if entry := evaluator.BestEntry(); entry != nil {
		path := filepath.Join(opts.outputDir, "best.genotype")
		if err := genotype.SaveFile(path, entry.Genotype); err != nil {
			return fmt.Errorf("write best genotype: %w", err)
		}
		progress.Info("best creature saved", "path", path, "fitness", entry.Fitness)
	}
	return nil
}
