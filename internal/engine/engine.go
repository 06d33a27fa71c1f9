// Package engine runs one year of settlement synthesis end to end: per-cell
// dot generation fanned across workers, a join, hierarchical aggregation, and
// the population-conservation check.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chronomaps/footsteps/internal/dots"
	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/model"
	"github.com/chronomaps/footsteps/internal/placement"
)

// Options configures an Engine.
type Options struct {
	RuralToTownThreshold float64
	TownToCityThreshold  float64
	MinDotPopulation     float64
	MinDotSpacing        float64
	EnableContinuity     bool
	PeoplePerDot         int
	Workers              int
	Grids                lod.GridConfig
	Land                 placement.LandChecker
}

// YearResult is the output of one year's processing pass.
type YearResult struct {
	RunID string
	Year  int
	LOD   map[lod.Level][]lod.AggregatedSettlement
	Stats model.ProcessingStats
}

// Engine processes yearly batches of grid cells into LOD datasets. A single
// engine may process many years; the position cache it holds is shared
// across them purely as a speedup and never affects outputs.
type Engine struct {
	opts     Options
	gen      *dots.Generator
	agg      *lod.Aggregator
	cache    *placement.PositionCache
	strategy placement.Strategy
}

// New creates an Engine. The placement strategy is chosen here, once, from
// the continuity flag.
func New(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.PeoplePerDot <= 0 {
		opts.PeoplePerDot = 100
	}

	sampler := &placement.Sampler{Land: opts.Land}
	cache := placement.NewPositionCache()

	var strategy placement.Strategy
	if opts.EnableContinuity {
		strategy = placement.NewDeterministic(cache, sampler, opts.MinDotSpacing)
	} else {
		strategy = placement.NewRandom(sampler, opts.MinDotSpacing)
	}

	gen := dots.New(dots.Config{
		RuralToTownThreshold: opts.RuralToTownThreshold,
		TownToCityThreshold:  opts.TownToCityThreshold,
		MinDotPopulation:     opts.MinDotPopulation,
	}, strategy)

	return &Engine{
		opts:     opts,
		gen:      gen,
		agg:      lod.NewAggregator(opts.Grids),
		cache:    cache,
		strategy: strategy,
	}
}

// CacheStats exposes position-cache statistics for observability.
func (e *Engine) CacheStats() placement.CacheStats {
	return e.cache.Stats()
}

// ClearCache drops memoized positions. Outputs for identical inputs are
// unchanged afterwards; only recomputation cost is paid.
func (e *Engine) ClearCache() {
	e.cache.Clear()
}

// ProcessYear synthesizes settlements for every valid cell of one year and
// aggregates them into all detail levels. Invalid cells are skipped and
// counted, never fatal; a conservation violation is.
func (e *Engine) ProcessYear(ctx context.Context, year int, cells []model.Cell) (*YearResult, error) {
	if year < model.MinYear || year > model.MaxYear {
		return nil, eris.Errorf("engine: year %d out of range [%d, %d]", year, model.MinYear, model.MaxYear)
	}

	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID), zap.Int("year", year))
	start := time.Now()

	stats := model.ProcessingStats{Year: year, CellsProcessed: len(cells)}

	// Validate up front so workers only see clean cells.
	valid := make([]model.Cell, 0, len(cells))
	for _, cell := range cells {
		if err := cell.Validate(); err != nil {
			stats.CoordinateErrors++
			log.Debug("engine: skipping invalid cell", zap.Error(err))
			continue
		}
		if cell.Population == 0 {
			continue
		}
		valid = append(valid, cell)
	}
	stats.ValidCells = len(valid)

	// Per-cell generation is embarrassingly parallel; results are written to
	// a preallocated slot per cell so output order never depends on
	// scheduling.
	fallbacksBefore := e.strategy.Fallbacks()
	perCell := make([][]dots.Dot, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, cell := range valid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perCell[i] = e.gen.Generate(cell.Population, cell.Lat, cell.Lon, cell.CellSize, e.opts.PeoplePerDot, dots.HintDetailed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "engine: generate dots for year %d", year)
	}

	var settlements []model.Settlement
	for i, cellDots := range perCell {
		if len(cellDots) == 0 {
			stats.ThresholdExcluded++
			continue
		}
		for _, d := range cellDots {
			s, err := model.NewSettlement(d.Coordinates, d.Population, year, d.Tier, valid[i].CellSize)
			if err != nil {
				stats.CoordinateErrors++
				log.Debug("engine: skipping invalid dot", zap.Error(err))
				continue
			}
			settlements = append(settlements, s)
			stats.TotalPopulation += s.Population
		}
	}
	stats.DotsCreated = len(settlements)
	stats.SpacingFallbacks = int(e.strategy.Fallbacks() - fallbacksBefore)

	levels, err := e.agg.Aggregate(settlements)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: aggregate year %d", year)
	}

	stats.Elapsed = time.Since(start)
	log.Info("engine: year processed",
		zap.Int("cells", stats.CellsProcessed),
		zap.Int("valid_cells", stats.ValidCells),
		zap.Int("dots", stats.DotsCreated),
		zap.Float64("population", stats.TotalPopulation),
		zap.Int("skipped_cells", stats.CoordinateErrors),
		zap.Duration("elapsed", stats.Elapsed),
	)

	return &YearResult{RunID: runID, Year: year, LOD: levels, Stats: stats}, nil
}
