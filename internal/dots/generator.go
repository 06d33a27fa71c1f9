// Package dots converts a grid cell's population into discrete settlement
// points. The point count depends on the cell's tier and the level-of-detail
// hint; dense settlements get fewer, heavier points so detailed views stay
// readable while sparse rural cells keep their granularity.
package dots

import (
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/model"
	"github.com/chronomaps/footsteps/internal/placement"
)

// Hint tells the generator which rendering resolution the dots are for.
type Hint int

const (
	// HintCoarse budgets dots for the aggregated zoom levels.
	HintCoarse Hint = iota
	// HintDetailed budgets dots for the finest zoom level.
	HintDetailed
)

// Dot is one generated point carrying an equal share of its cell population.
type Dot struct {
	Coordinates model.Coordinates
	Population  float64
	Tier        model.SettlementTier
}

// defaultMinDotPopulation is the base threshold-gate floor when none is
// configured.
const defaultMinDotPopulation = 0.5

// Config holds the tier thresholds and the threshold-gate floor for the
// generator.
type Config struct {
	RuralToTownThreshold float64
	TownToCityThreshold  float64

	// MinDotPopulation is the base population floor below which a cell
	// yields no dots. Zero means the default of 0.5.
	MinDotPopulation float64
}

// Generator creates density-aware dots for populated cells. The placement
// strategy is fixed at construction: deterministic when settlement continuity
// is enabled, random otherwise.
type Generator struct {
	cfg      Config
	strategy placement.Strategy
}

// New creates a Generator using the given thresholds and placement strategy.
func New(cfg Config, strategy placement.Strategy) *Generator {
	return &Generator{cfg: cfg, strategy: strategy}
}

// Generate returns the dots for one cell. Cells below the minimum population
// cutoff yield no dots. The populations of the returned dots always sum to
// exactly cellPop (equal split, no remainder loss).
func (g *Generator) Generate(cellPop, lat, lon, cellSize float64, peoplePerDot int, hint Hint) []Dot {
	if cellPop < minPopulationCutoff(peoplePerDot, hint, g.cfg.MinDotPopulation) {
		return nil
	}

	tier := model.ClassifyTier(cellPop, g.cfg.RuralToTownThreshold, g.cfg.TownToCityThreshold)
	n := dotCount(cellPop, peoplePerDot, tier, hint)
	perDot := cellPop / float64(n)

	positions := g.strategy.Place(lat, lon, cellSize, n, tier)

	dots := make([]Dot, 0, len(positions))
	for _, pos := range positions {
		if !pos.Valid() {
			// The sampler clamps, so this only fires on a broken strategy.
			zap.L().Debug("dots: skipping out-of-range position",
				zap.Float64("lat", pos.Lat), zap.Float64("lon", pos.Lon))
			continue
		}
		dots = append(dots, Dot{Coordinates: pos, Population: perDot, Tier: tier})
	}
	return dots
}

// minPopulationCutoff is the threshold gate below which a cell contributes no
// dots at this resolution. Detailed dots use a much lower floor so extremely
// sparse historical cells still contribute a point that coarser levels can
// aggregate; very small dot sizes (sparse eras) pass almost everything
// through. The configured floor is the lower bound at both resolutions.
func minPopulationCutoff(peoplePerDot int, hint Hint, floor float64) float64 {
	if floor <= 0 {
		floor = defaultMinDotPopulation
	}
	if hint == HintDetailed {
		if peoplePerDot <= 10 {
			return floor
		}
		return max(float64(peoplePerDot)/4, floor)
	}
	return max(float64(peoplePerDot)/2, 5, floor)
}

// dotCount applies the tier- and hint-dependent point budget. Every populated
// cell above the cutoff yields at least one dot.
func dotCount(cellPop float64, peoplePerDot int, tier model.SettlementTier, hint Hint) int {
	ppd := float64(peoplePerDot)

	if hint == HintDetailed {
		switch tier {
		case model.TierRural:
			return clampCount(cellPop/ppd, 20)
		case model.TierTown:
			return clampCount(cellPop/max(ppd*2, 50), 25)
		default: // city
			return clampCount(cellPop/max(ppd*4, 100), 75)
		}
	}

	switch tier {
	case model.TierRural:
		return clampCount(cellPop/ppd, 0)
	case model.TierTown:
		return clampCount(cellPop/(ppd*5), 5)
	default: // city
		return clampCount(cellPop/(ppd*20), 3)
	}
}

// clampCount truncates to an int and clamps to [1, cap]; cap <= 0 means
// uncapped.
func clampCount(raw float64, capN int) int {
	n := int(raw)
	if n < 1 {
		return 1
	}
	if capN > 0 && n > capN {
		return capN
	}
	return n
}
