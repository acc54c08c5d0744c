package storage

import (
	"context"
	"slices"
	"sync"
)

type memoryRun struct {
	generation int
	records    []Record
}

// MemoryStore keeps archives for the life of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]memoryRun
	latest      string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]memoryRun)
	return nil
}

func (s *MemoryStore) SaveArchive(_ context.Context, runID string, generation int, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b Record) int { return a.Rank - b.Rank })
	s.runs[runID] = memoryRun{generation: generation, records: sorted}
	s.latest = runID
	return nil
}

func (s *MemoryStore) LoadArchive(_ context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.runs[runID].records), nil
}

func (s *MemoryStore) LatestRun(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return "", false, ErrNotInitialized
	}
	return s.latest, s.latest != "", nil
}

func (s *MemoryStore) Close() error { return nil }
