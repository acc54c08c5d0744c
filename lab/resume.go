package lab

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/creatures/genotype"
)

// resume seeds the population with the archive of the most recent run.
// Genotypes that fail to parse are skipped and their slots stay random.
func (l *Lab) resume(ctx context.Context) {
	runID, ok, err := l.store.LatestRun(ctx)
	if err != nil {
		slog.Warn("resume: latest run lookup failed", "error", err)
		return
	}
	if !ok {
		slog.Info("resume: no previous run, starting from random genotypes")
		return
	}
	records, err := l.store.LoadArchive(ctx, runID)
	if err != nil {
		slog.Warn("resume: loading archive failed", "run_id", runID, "error", err)
		return
	}

	seeds := make([]*genotype.Graph, 0, len(records))
	for _, r := range records {
		g := &genotype.Graph{}
		if err := g.UnmarshalText([]byte(r.Genotype)); err != nil {
			slog.Warn("resume: skipping unparsable genotype", "run_id", runID, "rank", r.Rank, "error", err)
			continue
		}
		seeds = append(seeds, g)
	}
	n := l.pop.Seed(seeds)
	slog.Info("resumed from archive", "from_run", runID, "seeded", n, "records", len(records))
}
