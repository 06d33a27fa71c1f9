package placement

import (
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/model"
)

// seedStream is the second PCG seed word for deterministic placement. Fixed
// so that a cell seed fully determines its point stream.
const seedStream = 0x666f6f7473746570 // "footstep"

// Strategy places n points inside a grid cell. The two implementations are
// selected once at construction time from the continuity configuration flag:
// Deterministic when continuity is enabled, Random otherwise.
type Strategy interface {
	Place(lat, lon, cellSize float64, n int, tier model.SettlementTier) []model.Coordinates

	// Fallbacks reports how many points so far were placed by best-effort
	// fallback after the spacing constraint proved unsatisfiable.
	Fallbacks() int64
}

// Deterministic places points from a seed derived from the cell's geographic
// identity, memoized through a PositionCache. Identical geography and tier
// always yield identical layouts, regardless of year, LOD pass, or cache
// state.
type Deterministic struct {
	cache      *PositionCache
	sampler    *Sampler
	minSpacing float64
	fallbacks  atomic.Int64
}

// NewDeterministic creates a Deterministic strategy backed by the given
// cache and sampler.
func NewDeterministic(cache *PositionCache, sampler *Sampler, minSpacing float64) *Deterministic {
	return &Deterministic{cache: cache, sampler: sampler, minSpacing: minSpacing}
}

// Place returns n cached-or-generated positions for the cell. Sampling runs
// around the cell's canonical center, not the caller's coordinates, so the
// layout is a function of the cell id alone.
func (d *Deterministic) Place(lat, lon, cellSize float64, n int, tier model.SettlementTier) []model.Coordinates {
	return d.cache.GetOrCreate(lat, lon, cellSize, n, tier, func(seed uint64, cellLat, cellLon float64, n int) []model.Coordinates {
		rng := rand.New(rand.NewPCG(seed, seedStream))
		points, fallbacks := d.sampler.Sample(cellLat, cellLon, cellSize, n, d.minSpacing, rng)
		if fallbacks > 0 {
			d.fallbacks.Add(int64(fallbacks))
			zap.L().Debug("placement: spacing constraint relaxed",
				zap.Float64("lat", cellLat),
				zap.Float64("lon", cellLon),
				zap.Int("points", n),
				zap.Int("fallbacks", fallbacks),
			)
		}
		return points
	})
}

// Fallbacks reports the cumulative spacing-fallback count.
func (d *Deterministic) Fallbacks() int64 { return d.fallbacks.Load() }

// Random places points with fresh randomness on every call. Lighter weight
// than Deterministic (no cache, no hashing) at the cost of continuity: two
// calls with identical arguments may legitimately differ.
type Random struct {
	sampler    *Sampler
	minSpacing float64
	fallbacks  atomic.Int64
}

// NewRandom creates a Random strategy using the given sampler.
func NewRandom(sampler *Sampler, minSpacing float64) *Random {
	return &Random{sampler: sampler, minSpacing: minSpacing}
}

// Place returns n freshly sampled positions for the cell. Each call seeds its
// own generator so concurrent cells never share RNG state.
func (r *Random) Place(lat, lon, cellSize float64, n int, tier model.SettlementTier) []model.Coordinates {
	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	points, fallbacks := r.sampler.Sample(lat, lon, cellSize, n, r.minSpacing, rng)
	if fallbacks > 0 {
		r.fallbacks.Add(int64(fallbacks))
		zap.L().Debug("placement: spacing constraint relaxed",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Int("points", n),
			zap.Int("fallbacks", fallbacks),
		)
	}
	return points
}

// Fallbacks reports the cumulative spacing-fallback count.
func (r *Random) Fallbacks() int64 { return r.fallbacks.Load() }
