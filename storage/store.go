// Package storage persists the genotype archive of a run so later runs can
// resume from it.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// Record is one archived genotype in its text encoding.
type Record struct {
	Rank     int
	Fitness  float64
	Genotype string
}

// Store saves and loads run archives.
type Store interface {
	Init(ctx context.Context) error
	// SaveArchive replaces the archive stored for runID.
	SaveArchive(ctx context.Context, runID string, generation int, records []Record) error
	// LoadArchive returns the records of runID ordered by rank. An unknown
	// run yields no records.
	LoadArchive(ctx context.Context, runID string) ([]Record, error)
	// LatestRun returns the run saved most recently.
	LatestRun(ctx context.Context) (string, bool, error)
	Close() error
}

// NewStore creates an uninitialized store of the given backend kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
