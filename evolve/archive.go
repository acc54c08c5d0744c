package evolve

import (
	"sort"

	"github.com/pthm-cable/creatures/genotype"
)

// ArchiveEntry is one archived genotype.
type ArchiveEntry struct {
	Genotype   *genotype.Graph
	Fitness    float64
	Generation int
}

// Archive keeps the best genotypes seen so far, sorted by descending fitness.
type Archive struct {
	entries []ArchiveEntry
	maxSize int
}

// NewArchive creates an archive holding at most maxSize entries.
func NewArchive(maxSize int) *Archive {
	maxSize = max(maxSize, 1)
	return &Archive{entries: make([]ArchiveEntry, 0, maxSize), maxSize: maxSize}
}

// Consider stores a clone of g if the archive has room or fitness beats the
// weakest entry. Returns true if g was added.
func (a *Archive) Consider(g *genotype.Graph, fitness float64, generation int) bool {
	if len(a.entries) >= a.maxSize && fitness <= a.entries[len(a.entries)-1].Fitness {
		return false
	}
	a.entries = a.insertEntry(a.entries, ArchiveEntry{Genotype: g.Clone(), Fitness: fitness, Generation: generation})
	return true
}

// insertEntry adds an entry, maintaining sorted order by fitness.
// If the archive is full, the lowest-fitness entry is removed.
func (a *Archive) insertEntry(entries []ArchiveEntry, entry ArchiveEntry) []ArchiveEntry {
	// Equal fitness goes after existing entries
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].Fitness < entry.Fitness
	})
	if len(entries) >= a.maxSize && idx >= a.maxSize {
		return entries
	}

	entries = append(entries, ArchiveEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = entry

	if len(entries) > a.maxSize {
		entries = entries[:a.maxSize]
	}
	return entries
}

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.entries) }

// Cap returns the maximum number of entries.
func (a *Archive) Cap() int { return a.maxSize }

// Best returns the fittest entry.
func (a *Archive) Best() (ArchiveEntry, bool) {
	if len(a.entries) == 0 {
		return ArchiveEntry{}, false
	}
	return a.entries[0], true
}

// TopFitness returns the highest archived fitness, or 0 when empty.
func (a *Archive) TopFitness() float64 {
	if len(a.entries) == 0 {
		return 0
	}
	return a.entries[0].Fitness
}

// Entries returns the entries best first. The genotypes are shared, not copied.
func (a *Archive) Entries() []ArchiveEntry {
	return append([]ArchiveEntry(nil), a.entries...)
}
