package lab

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/creatures/storage"
	"github.com/pthm-cable/creatures/telemetry"
)

// registerHooks routes population events to logging and output files.
func (l *Lab) registerHooks() {
	l.pop.OnGeneration(func(stats telemetry.GenerationStats) {
		l.lastStats = stats
		if l.logStats {
			slog.Info("generation", "stats", stats)
			slog.Info("perf", "stats", l.timer.Stats())
		}
		if err := l.outputManager.WriteGeneration(stats); err != nil {
			slog.Error("failed to write generation", "error", err)
		}
	})

	if !l.cfg.Telemetry.RolloutLogEnable {
		return
	}
	l.pop.OnRollout(func(rec telemetry.RolloutRecord) {
		if err := l.outputManager.WriteRollout(rec); err != nil {
			slog.Error("failed to write rollout", "error", err)
		}
	})
}

// saveArchive stores the current archive under the run ID.
func (l *Lab) saveArchive(ctx context.Context) {
	if l.store == nil {
		return
	}
	entries := l.pop.Archive().Entries()
	records := make([]storage.Record, 0, len(entries))
	for i, e := range entries {
		text, err := e.Genotype.MarshalText()
		if err != nil {
			slog.Error("failed to encode genotype", "rank", i, "error", err)
			continue
		}
		records = append(records, storage.Record{Rank: i, Fitness: e.Fitness, Genotype: string(text)})
	}
	if err := l.store.SaveArchive(ctx, l.runID, l.pop.Generation(), records); err != nil {
		slog.Error("failed to save archive", "run_id", l.runID, "error", err)
	}
}
