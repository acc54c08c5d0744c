package main

import (
	"bytes"
	"encoding/csv"
	"testing"
)

func TestTuneLogTracksBest(t *testing.T) {
	params := NewParamVector()
	var buf bytes.Buffer
	tl, err := newTuneLog(&buf, params, 10)
	if err != nil {
		t.Fatalf("newTuneLog: %v", err)
	}

	values := make([]float64, params.Dim())
	evals := []struct {
		fitness float64
		fill    float64
		better  bool
	}{
		{-1, 0.1, true},
		{-3, 0.2, true},
		{-2, 0.3, false},
	}
	for i, ev := range evals {
		for j := range values {
			values[j] = ev.fill
		}
		improved, err := tl.record(values, ev.fitness, 0.5)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if improved != ev.better {
			t.Errorf("record %d improved = %v, want %v", i, improved, ev.better)
		}
	}

	if tl.bestFitness != -3 {
		t.Errorf("best fitness = %v, want -3", tl.bestFitness)
	}
	for j, v := range tl.bestParams {
		if v != 0.2 {
			t.Fatalf("best param %d = %v, want 0.2", j, v)
		}
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(rows) != 1+len(evals) {
		t.Fatalf("log has %d rows, want %d", len(rows), 1+len(evals))
	}
	if want := 3 + params.Dim(); len(rows[0]) != want {
		t.Errorf("header has %d columns, want %d", len(rows[0]), want)
	}
	if rows[2][0] != "2" || rows[2][1] != "-3.000000" {
		t.Errorf("second row = %v", rows[2])
	}
	if tl.eta() < 0 {
		t.Errorf("eta = %v, want non-negative", tl.eta())
	}
}
