package universe

import (
	"sort"
	"sync"

	"github.com/wonny/sectorpulse/pkg/logger"
)

// Entry is one symbol's universe membership
type Entry struct {
	Symbol string
	Sector string
	Active bool
}

// Index is the in-memory symbol → sector lookup consumed by the pipeline.
// Read-only from the engine's perspective; Reload swaps the whole mapping
// under a write lock when the registry refresh job runs.
// ⭐ SSOT: 유니버스 조회는 이 인덱스에서만
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
	sectors []string
	logger  *logger.Logger
}

// NewIndex creates an empty universe index
func NewIndex(log *logger.Logger) *Index {
	return &Index{
		entries: make(map[string]Entry),
		logger:  log.Component("universe.index"),
	}
}

// Reload replaces the entire mapping in one swap
func (ix *Index) Reload(entries []Entry) {
	m := make(map[string]Entry, len(entries))
	sectorSet := make(map[string]struct{})

	for _, e := range entries {
		m[e.Symbol] = e
		if e.Sector != "" {
			sectorSet[e.Sector] = struct{}{}
		}
	}

	sectors := make([]string, 0, len(sectorSet))
	for s := range sectorSet {
		sectors = append(sectors, s)
	}
	sort.Strings(sectors)

	ix.mu.Lock()
	ix.entries = m
	ix.sectors = sectors
	ix.mu.Unlock()

	ix.logger.WithFields(map[string]interface{}{
		"symbols": len(m),
		"sectors": len(sectors),
	}).Info("Universe index reloaded")
}

// Lookup returns the sector and active flag for a symbol
func (ix *Index) Lookup(symbol string) (sector string, active bool, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, exists := ix.entries[symbol]
	if !exists {
		return "", false, false
	}
	return e.Sector, e.Active, true
}

// Sectors returns every known sector in sorted order
func (ix *Index) Sectors() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]string, len(ix.sectors))
	copy(out, ix.sectors)
	return out
}

// Size returns the number of indexed symbols
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}
