package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
	"github.com/pthm-cable/creatures/geom"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	if err := om.WriteGeneration(GenerationStats{}); err != nil {
		t.Errorf("nil WriteGeneration: %v", err)
	}
	if err := om.WriteRollout(RolloutRecord{}); err != nil {
		t.Errorf("nil WriteRollout: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	for gen := range 3 {
		if err := om.WriteGeneration(GenerationStats{RunID: "r1", Generation: gen, FitnessMax: float64(gen)}); err != nil {
			t.Fatalf("WriteGeneration: %v", err)
		}
	}
	if err := om.WriteRollout(RolloutRecord{Generation: 0, Index: 1, Reason: "timeout"}); err != nil {
		t.Fatalf("WriteRollout: %v", err)
	}

	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	best := &genotype.Graph{Nodes: []genotype.Node{{Shape: geom.Sphere(1)}}, Edges: [][]genotype.Edge{nil}}
	if err := om.WriteBest(best); err != nil {
		t.Fatalf("WriteBest: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("generations.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,generation,") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(string(data), "run_id") != 1 {
		t.Error("header written more than once")
	}

	for _, name := range []string{"rollouts.csv", "config.yaml", "best.genotype"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	loaded, err := genotype.LoadFile(filepath.Join(dir, "best.genotype"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.NodeCount() != 1 {
		t.Errorf("best genotype has %d nodes, want 1", loaded.NodeCount())
	}
}
