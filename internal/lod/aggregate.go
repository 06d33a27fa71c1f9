package lod

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/chronomaps/footsteps/internal/model"
)

// KMPerDegree is the flat-earth approximation used for density, matching the
// source pipeline's rough km conversion at the equator.
const KMPerDegree = 111.32

// jitterFraction bounds the derandomization offset to +-25% of the grid cell
// size on each axis.
const jitterFraction = 0.25

// conservationFloor is the minimum share of the input population every level
// must retain. Anything lower is an aggregation bug, not bad data.
const conservationFloor = 0.99

// AggregatedSettlement is one occupied grid cell at a detail level.
type AggregatedSettlement struct {
	Coordinates     model.Coordinates `json:"coordinates"`
	TotalPopulation float64           `json:"total_population"`
	Year            int               `json:"year"`
	Level           Level             `json:"lod_level"`
	GridSize        float64           `json:"grid_size_degrees"`
	SourceDotCount  int               `json:"source_dot_count"`
	AverageDensity  float64           `json:"average_density"`
}

// ConservationError reports a detail level that lost more than the allowed
// share of the input population.
type ConservationError struct {
	Level    Level
	Expected float64
	Observed float64
}

func (e *ConservationError) Error() string {
	ratio := 1.0
	if e.Expected > 0 {
		ratio = e.Observed / e.Expected
	}
	return fmt.Sprintf("lod: level %s conserved only %.1f%% of population (%.0f of %.0f)",
		e.Level, ratio*100, e.Observed, e.Expected)
}

// Aggregator re-buckets finest-resolution settlements into the coarser
// detail levels.
type Aggregator struct {
	grids GridConfig
}

// NewAggregator creates an Aggregator with the given grid configuration.
func NewAggregator(grids GridConfig) *Aggregator {
	return &Aggregator{grids: grids}
}

// gridKey identifies one cell of a coarse aggregation grid.
type gridKey struct {
	GX int64
	GY int64
}

// accumulator sums the contributions of one grid cell.
type accumulator struct {
	population float64
	count      int
}

// Aggregate builds all four detail levels for one year's settlements and
// verifies population conservation at each. The Detailed level is the input
// itself, one aggregate per settlement. Returns a ConservationError if any
// level retains less than 99% of the input population.
func (a *Aggregator) Aggregate(settlements []model.Settlement) (map[Level][]AggregatedSettlement, error) {
	out := make(map[Level][]AggregatedSettlement, 4)
	if len(settlements) == 0 {
		for _, l := range Levels() {
			out[l] = nil
		}
		return out, nil
	}

	year := settlements[0].Year
	out[Detailed] = a.detailed(settlements)
	for _, level := range []Level{Regional, Subregional, Local} {
		out[level] = a.aggregateLevel(settlements, level, year)
	}

	if err := a.validateConservation(settlements, out); err != nil {
		return nil, err
	}
	return out, nil
}

// detailed maps each settlement to its own aggregate.
func (a *Aggregator) detailed(settlements []model.Settlement) []AggregatedSettlement {
	aggs := make([]AggregatedSettlement, 0, len(settlements))
	for _, s := range settlements {
		cellKM := s.SourceCellSize * KMPerDegree
		aggs = append(aggs, AggregatedSettlement{
			Coordinates:     s.Coordinates,
			TotalPopulation: s.Population,
			Year:            s.Year,
			Level:           Detailed,
			GridSize:        s.SourceCellSize,
			SourceDotCount:  1,
			AverageDensity:  s.Population / (cellKM * cellKM),
		})
	}
	return aggs
}

// aggregateLevel snaps settlements onto the level's grid, sums population per
// occupied cell, and places each aggregate at the jittered cell center.
func (a *Aggregator) aggregateLevel(settlements []model.Settlement, level Level, year int) []AggregatedSettlement {
	gridSize := a.grids.GridSize(level)
	cells := make(map[gridKey]*accumulator)

	for _, s := range settlements {
		key := gridKey{
			GX: int64(math.Round(s.Coordinates.Lon / gridSize)),
			GY: int64(math.Round(s.Coordinates.Lat / gridSize)),
		}
		acc, ok := cells[key]
		if !ok {
			acc = &accumulator{}
			cells[key] = acc
		}
		acc.population += s.Population
		acc.count++
	}

	// Sort keys so output order is stable within a run.
	keys := make([]gridKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].GY != keys[j].GY {
			return keys[i].GY < keys[j].GY
		}
		return keys[i].GX < keys[j].GX
	})

	cellKM := gridSize * KMPerDegree
	aggs := make([]AggregatedSettlement, 0, len(keys))
	for _, k := range keys {
		acc := cells[k]
		dLon, dLat := gridJitter(k.GX, k.GY, year)
		lon := clampLon(float64(k.GX)*gridSize + dLon*gridSize)
		lat := clampLat(float64(k.GY)*gridSize + dLat*gridSize)

		aggs = append(aggs, AggregatedSettlement{
			Coordinates:     model.Coordinates{Lon: lon, Lat: lat},
			TotalPopulation: acc.population,
			Year:            year,
			Level:           level,
			GridSize:        gridSize,
			SourceDotCount:  acc.count,
			AverageDensity:  acc.population / (cellKM * cellKM),
		})
	}
	return aggs
}

// gridJitter derives the derandomization offset for a grid cell, as a
// fraction of the grid size in [-0.25, 0.25] per axis. Raw grid-snapped
// centers line up into visible lattice artifacts; hashing the grid indices
// and year breaks the lattice while keeping the offset reproducible. The
// detail level is deliberately absent from the key so the same cluster gets
// the same relative offset at every coarse level.
func gridJitter(gx, gy int64, year int) (dLon, dLat float64) {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(gx))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(gy))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(year)))
	h := xxhash.Sum64(buf[:])

	uLon := float64(uint32(h)) / float64(math.MaxUint32)
	uLat := float64(uint32(h>>32)) / float64(math.MaxUint32)
	return (uLon - 0.5) * 2 * jitterFraction, (uLat - 0.5) * 2 * jitterFraction
}

// validateConservation checks every level against the input total. A level
// below the floor aborts the year: population loss here means the grouping
// itself is broken.
func (a *Aggregator) validateConservation(settlements []model.Settlement, levels map[Level][]AggregatedSettlement) error {
	var original float64
	for _, s := range settlements {
		original += s.Population
	}
	if original <= 0 {
		return nil
	}

	log := zap.L().With(zap.Float64("original_population", original))
	for _, level := range Levels() {
		var total float64
		for _, agg := range levels[level] {
			total += agg.TotalPopulation
		}
		ratio := total / original
		log.Debug("lod: conservation check",
			zap.Stringer("level", level),
			zap.Float64("total", total),
			zap.Float64("ratio", ratio),
			zap.Int("aggregates", len(levels[level])),
		)
		if ratio < conservationFloor {
			return &ConservationError{Level: level, Expected: original, Observed: total}
		}
	}
	return nil
}

func clampLat(v float64) float64 {
	return math.Min(90, math.Max(-90, v))
}

func clampLon(v float64) float64 {
	return math.Min(180, math.Max(-180, v))
}
