package lab

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("config defaults: %v", err)
	}
	cfg.Population.Size = 3
	cfg.Fitness.RoundTicks = 10
	cfg.Fitness.BaselineTicks = 5
	cfg.Physics.MaxGroups = 4
	cfg.Telemetry.RolloutLogEnable = true
	cfg.ComputeDerived()
	return cfg
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s := storage.NewMemoryStore()
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunSavesArchive(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := filepath.Join(t.TempDir(), "out")

	l, err := New(ctx, testConfig(t), Options{Seed: 5, OutputDir: dir, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Run(ctx, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if l.Population().Generation() != 2 {
		t.Errorf("generation = %d, want 2", l.Population().Generation())
	}
	if l.World().LiveBodies() != 0 || l.World().LiveJoints() != 0 {
		t.Errorf("world holds %d bodies and %d joints after Close", l.World().LiveBodies(), l.World().LiveJoints())
	}
	if l.LastStats().Generation != 1 || l.LastStats().RunID != l.RunID() {
		t.Errorf("last stats = %+v", l.LastStats())
	}

	runID, ok, err := store.LatestRun(ctx)
	if err != nil || !ok || runID != l.RunID() {
		t.Fatalf("LatestRun = %q, %v, %v; want %q", runID, ok, err, l.RunID())
	}
	records, err := store.LoadArchive(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) == 0 || len(records) > testConfig(t).Population.ArchiveSize {
		t.Errorf("stored %d records", len(records))
	}
	for i, r := range records {
		if r.Rank != i || r.Genotype == "" {
			t.Errorf("record %d = rank %d, %d bytes", i, r.Rank, len(r.Genotype))
		}
	}

	for _, name := range []string{"generations.csv", "rollouts.csv", "config.yaml", "best.genotype"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestResumeSeedsPopulation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	first, err := New(ctx, testConfig(t), Options{Seed: 11, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Run(ctx, 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	first.Close()

	records, err := store.LoadArchive(ctx, first.RunID())
	if err != nil || len(records) == 0 {
		t.Fatalf("LoadArchive = %d records, %v", len(records), err)
	}
	// A corrupt entry ranks first; it must be skipped, not abort the resume.
	corrupt := append([]storage.Record{{Rank: 0, Genotype: "not a genotype"}}, records...)
	for i := range corrupt {
		corrupt[i].Rank = i
	}
	if err := store.SaveArchive(ctx, first.RunID(), 1, corrupt); err != nil {
		t.Fatal(err)
	}

	second, err := New(ctx, testConfig(t), Options{Seed: 12, Store: store, Resume: true})
	if err != nil {
		t.Fatalf("New with resume: %v", err)
	}
	defer second.Close()

	got, err := second.Population().Individuals()[0].Genotype.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != records[0].Genotype {
		t.Errorf("first individual was not seeded from the best archived genotype:\n%s\nwant:\n%s", got, records[0].Genotype)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l, err := New(context.Background(), testConfig(t), Options{Seed: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	if err := l.Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if l.Tick() != 0 {
		t.Errorf("ran %d ticks after cancel", l.Tick())
	}
}
