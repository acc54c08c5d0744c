package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/lab"
	"github.com/pthm-cable/creatures/storage"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output generation stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	generations := flag.Int("generations", 0, "Stop after N generations (0 = unlimited)")
	resume := flag.Bool("resume", false, "Seed the population from the latest stored archive")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Environment overrides; CLI flags win over env
	env, err := cfg.ParseEnv()
	if err != nil {
		slog.Error("failed to read environment", "error", err)
		os.Exit(1)
	}
	if *seed == 0 {
		*seed = env.Seed
	}
	if *generations == 0 {
		*generations = env.Generations
	}
	if *outputDir == "" {
		*outputDir = cfg.Telemetry.OutputDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.SQLitePath)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		slog.Error("failed to init store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	l, err := lab.New(ctx, cfg, lab.Options{
		Seed:      *seed,
		OutputDir: *outputDir,
		Store:     store,
		Resume:    *resume,
		LogStats:  *logStats,
	})
	if err != nil {
		slog.Error("failed to create lab", "error", err)
		os.Exit(1)
	}

	slog.Info("starting evolution",
		"seed", l.Seed(),
		"run_id", l.RunID(),
		"generations", *generations,
		"store", cfg.Storage.Backend,
	)

	runErr := l.Run(ctx, *generations)
	if err := l.Close(); err != nil {
		slog.Error("failed to close lab", "error", err)
	}
	if runErr != nil {
		slog.Error("run failed", "error", runErr)
		os.Exit(1)
	}

	if best, ok := l.Population().Archive().Best(); ok {
		slog.Info("best creature",
			"fitness", best.Fitness,
			"generation", best.Generation,
			"nodes", best.Genotype.NodeCount(),
		)
	}
}
