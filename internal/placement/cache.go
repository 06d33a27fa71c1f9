package placement

import (
	"sync"
	"sync/atomic"

	"github.com/chronomaps/footsteps/internal/model"
)

// GeneratorFunc produces n deterministic points around a cell's canonical
// center for a cell seed. Generation must be append-stable: the first k
// points of a generation of n must equal a generation of k for the same seed.
type GeneratorFunc func(seed uint64, cellLat, cellLon float64, n int) []model.Coordinates

// offset is one cached point, stored relative to its cell's canonical center
// so the entry is independent of which coordinates inside the cell first
// asked for it.
type offset struct {
	dLat, dLon float64
}

// PositionCache memoizes generated point sets per geographic cell id so that
// repeated requests, across LOD passes and across years, return identical
// positions without recomputation. Safe for concurrent use. Determinism never
// depends on cache state; clearing it only costs recomputation.
type PositionCache struct {
	mu      sync.RWMutex
	entries map[string][]offset
	hits    atomic.Int64
	misses  atomic.Int64
}

// CacheStats summarizes cache occupancy and effectiveness.
type CacheStats struct {
	CachedCells     int     `json:"cached_cells"`
	CachedPositions int     `json:"cached_positions"`
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	HitRate         float64 `json:"hit_rate"`
}

// NewPositionCache creates an empty PositionCache.
func NewPositionCache() *PositionCache {
	return &PositionCache{entries: make(map[string][]offset)}
}

// GetOrCreate returns n points for the cell identified by (lat, lon,
// cellSize, tier). Points are generated around and cached relative to the
// cell's canonical center, so every caller inside the cell sees the same
// layout. A hit with enough cached points returns the prefix; a short or
// missing entry is regenerated from the cell's seed, which yields the same
// prefix plus a fresh deterministic suffix.
func (c *PositionCache) GetOrCreate(lat, lon, cellSize float64, n int, tier model.SettlementTier, gen GeneratorFunc) []model.Coordinates {
	if n <= 0 {
		return nil
	}

	id := CellID(lat, lon, cellSize, tier)
	cellLat, cellLon := SnapToCell(lat, lon, cellSize)

	c.mu.RLock()
	cached, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && len(cached) >= n {
		c.hits.Add(1)
		return materialize(cached[:n], cellLat, cellLon)
	}

	c.misses.Add(1)
	points := gen(Seed(id), cellLat, cellLon, n)

	offs := make([]offset, len(points))
	for i, p := range points {
		offs[i] = offset{dLat: p.Lat - cellLat, dLon: p.Lon - cellLon}
	}

	c.mu.Lock()
	// Another goroutine may have raced us here; keep whichever entry is
	// longer. Both were generated from the same seed, so the shorter one is
	// a prefix of the longer one either way.
	if existing, ok := c.entries[id]; !ok || len(existing) < len(offs) {
		c.entries[id] = offs
	}
	c.mu.Unlock()

	// Materialize on the miss path too, so hits and misses agree to the
	// last bit even when the center-offset round trip rounds.
	return materialize(offs[:n], cellLat, cellLon)
}

// materialize converts cached offsets back into absolute coordinates around
// the cell center, re-clamped so rounding at the range edges cannot leak an
// out-of-bounds coordinate.
func materialize(offs []offset, cellLat, cellLon float64) []model.Coordinates {
	out := make([]model.Coordinates, len(offs))
	for i, o := range offs {
		out[i] = model.Coordinates{
			Lat: clamp(cellLat+o.dLat, -90, 90),
			Lon: clamp(cellLon+o.dLon, -180, 180),
		}
	}
	return out
}

// Clear empties the cache. Future outputs for identical inputs are unchanged
// because regeneration is deterministic.
func (c *PositionCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]offset)
	c.mu.Unlock()
}

// Stats returns cache occupancy and hit statistics.
func (c *PositionCache) Stats() CacheStats {
	c.mu.RLock()
	cells := len(c.entries)
	positions := 0
	for _, pts := range c.entries {
		positions += len(pts)
	}
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		CachedCells:     cells,
		CachedPositions: positions,
		Hits:            hits,
		Misses:          misses,
		HitRate:         hitRate,
	}
}
