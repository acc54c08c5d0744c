package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "creatures.db")),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Init(ctx); err != nil {
				t.Fatalf("init: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })

			if _, ok, err := store.LatestRun(ctx); err != nil || ok {
				t.Fatalf("LatestRun on empty store = %v, %v", ok, err)
			}

			first := []Record{
				{Rank: 1, Fitness: 2, Genotype: "b"},
				{Rank: 0, Fitness: 3, Genotype: "a"},
			}
			if err := store.SaveArchive(ctx, "run-1", 4, first); err != nil {
				t.Fatalf("save run-1: %v", err)
			}
			if err := store.SaveArchive(ctx, "run-2", 1, []Record{{Rank: 0, Fitness: 1, Genotype: "c"}}); err != nil {
				t.Fatalf("save run-2: %v", err)
			}

			latest, ok, err := store.LatestRun(ctx)
			if err != nil || !ok || latest != "run-2" {
				t.Fatalf("LatestRun = %q, %v, %v; want run-2", latest, ok, err)
			}

			got, err := store.LoadArchive(ctx, "run-1")
			if err != nil {
				t.Fatalf("load run-1: %v", err)
			}
			want := []Record{first[1], first[0]}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("run-1 = %+v, want %+v", got, want)
			}

			// Saving again replaces the archive and makes the run latest.
			if err := store.SaveArchive(ctx, "run-1", 5, first[:1]); err != nil {
				t.Fatalf("resave run-1: %v", err)
			}
			got, err = store.LoadArchive(ctx, "run-1")
			if err != nil {
				t.Fatalf("reload run-1: %v", err)
			}
			if len(got) != 1 || got[0] != first[0] {
				t.Errorf("run-1 after resave = %+v", got)
			}
			if latest, _, _ := store.LatestRun(ctx); latest != "run-1" {
				t.Errorf("LatestRun after resave = %q, want run-1", latest)
			}

			if got, err := store.LoadArchive(ctx, "missing"); err != nil || len(got) != 0 {
				t.Errorf("LoadArchive(missing) = %+v, %v", got, err)
			}
		})
	}
}

func TestStoreNotInitialized(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.SaveArchive(ctx, "r", 0, nil); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("SaveArchive before Init = %v, want ErrNotInitialized", err)
			}
			if _, err := store.LoadArchive(ctx, "r"); !errors.Is(err, ErrNotInitialized) {
				t.Errorf("LoadArchive before Init = %v, want ErrNotInitialized", err)
			}
		})
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"sqlite", false},
		{"postgres", true},
	}
	for _, tt := range tests {
		_, err := NewStore(tt.kind, "x.db")
		if (err != nil) != tt.wantErr {
			t.Errorf("NewStore(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
		}
	}
}
