package placement

import (
	"math"
	"math/rand/v2"

	"github.com/chronomaps/footsteps/internal/model"
)

// maxAttempts is the per-point retry budget for satisfying the spacing (and
// land) constraints before degrading to best-effort placement.
const maxAttempts = 100

// landAttempts caps how many draws may be rejected for being off-land before
// the land preference is abandoned. The mask is advisory and never costs a
// point its placement.
const landAttempts = 10

// LandChecker reports whether a point falls on land. Implemented by the
// landmask package; a nil checker disables the preference.
type LandChecker interface {
	IsLand(lat, lon float64) bool
}

// Sampler draws point positions inside a grid cell with a minimum spacing
// between accepted points. It holds no per-call state and is safe for
// concurrent use; all randomness comes from the caller-supplied rng.
type Sampler struct {
	Land LandChecker
}

// Sample returns n points inside the cell centered at (lat, lon), each at
// least minSpacing degrees from every other point where feasible. When the
// retry budget runs out for a point, the best candidate seen (largest
// distance to its nearest accepted neighbor) is used instead of dropping the
// point. The returned fallback count is how many points needed that escape
// hatch. Results are clamped to valid coordinate ranges.
func (s *Sampler) Sample(lat, lon, cellSize float64, n int, minSpacing float64, rng *rand.Rand) ([]model.Coordinates, int) {
	if n <= 0 {
		return nil, 0
	}

	points := make([]model.Coordinates, 0, n)
	minSq := minSpacing * minSpacing
	fallbacks := 0

	for i := 0; i < n; i++ {
		var best model.Coordinates
		bestDistSq := -1.0
		placed := false
		offLand := 0

		for attempt := 0; attempt < maxAttempts; attempt++ {
			cand := s.draw(lat, lon, cellSize, rng)

			if s.Land != nil && offLand < landAttempts && !s.Land.IsLand(cand.Lat, cand.Lon) {
				offLand++
				continue
			}

			dSq := nearestSq(cand, points)
			if dSq >= minSq {
				points = append(points, cand)
				placed = true
				break
			}
			if dSq > bestDistSq {
				bestDistSq = dSq
				best = cand
			}
		}

		if !placed {
			// Spacing was infeasible within the budget. Keep the candidate
			// that was furthest from its nearest neighbor; the population
			// this point carries must still land somewhere.
			if bestDistSq < 0 {
				best = s.draw(lat, lon, cellSize, rng)
			}
			points = append(points, best)
			fallbacks++
		}
	}

	return points, fallbacks
}

// draw produces one uniform candidate inside the cell, clamped to valid
// geographic bounds.
func (s *Sampler) draw(lat, lon, cellSize float64, rng *rand.Rand) model.Coordinates {
	half := cellSize / 2
	candLat := lat + (rng.Float64()*cellSize - half)
	candLon := lon + (rng.Float64()*cellSize - half)
	return model.Coordinates{
		Lat: clamp(candLat, -90, 90),
		Lon: clamp(candLon, -180, 180),
	}
}

// nearestSq returns the squared degree distance from cand to its nearest
// neighbor in points, or +Inf when points is empty.
func nearestSq(cand model.Coordinates, points []model.Coordinates) float64 {
	nearest := math.Inf(1)
	for _, p := range points {
		dLat := cand.Lat - p.Lat
		dLon := cand.Lon - p.Lon
		if d := dLat*dLat + dLon*dLon; d < nearest {
			nearest = d
		}
	}
	return nearest
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
