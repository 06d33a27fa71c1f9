package engine

import (
	"context"
	"math"
	"testing"

	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/model"
)

func testOptions() Options {
	return Options{
		RuralToTownThreshold: 1000,
		TownToCityThreshold:  10000,
		MinDotSpacing:        0.001,
		EnableContinuity:     true,
		PeoplePerDot:         100,
		Workers:              4,
		Grids:                lod.DefaultGridConfig(),
	}
}

func testCells() []model.Cell {
	return []model.Cell{
		{Lat: 48.85, Lon: 2.35, Population: 25000, CellSize: 0.0833},
		{Lat: 48.93, Lon: 2.43, Population: 4200, CellSize: 0.0833},
		{Lat: 51.50, Lon: -0.12, Population: 18000, CellSize: 0.0833},
		{Lat: -33.86, Lon: 151.20, Population: 640, CellSize: 0.0833},
		{Lat: 35.68, Lon: 139.69, Population: 90000, CellSize: 0.0833},
	}
}

func TestProcessYearConservesPopulation(t *testing.T) {
	e := New(testOptions())
	cells := testCells()

	res, err := e.ProcessYear(context.Background(), 1500, cells)
	if err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}

	var input float64
	for _, c := range cells {
		input += c.Population
	}
	if math.Abs(res.Stats.TotalPopulation-input) > 1e-6 {
		t.Errorf("dot population = %f, want %f", res.Stats.TotalPopulation, input)
	}

	for _, level := range lod.Levels() {
		var sum float64
		for _, agg := range res.LOD[level] {
			sum += agg.TotalPopulation
		}
		if math.Abs(sum-input) > input*0.01 {
			t.Errorf("%s population = %f, want within 1%% of %f", level, sum, input)
		}
	}
}

func TestProcessYearStats(t *testing.T) {
	e := New(testOptions())
	res, err := e.ProcessYear(context.Background(), 1900, testCells())
	if err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}

	if res.RunID == "" {
		t.Error("empty run id")
	}
	if res.Year != 1900 {
		t.Errorf("year = %d, want 1900", res.Year)
	}
	if res.Stats.CellsProcessed != 5 || res.Stats.ValidCells != 5 {
		t.Errorf("cells processed/valid = %d/%d, want 5/5", res.Stats.CellsProcessed, res.Stats.ValidCells)
	}
	if res.Stats.DotsCreated == 0 {
		t.Error("no dots created")
	}
	if len(res.LOD[lod.Detailed]) != res.Stats.DotsCreated {
		t.Errorf("detailed level has %d settlements, stats say %d dots", len(res.LOD[lod.Detailed]), res.Stats.DotsCreated)
	}
	if res.Stats.Elapsed <= 0 {
		t.Error("elapsed not recorded")
	}
}

func TestProcessYearSkipsInvalidCells(t *testing.T) {
	cells := append(testCells(),
		model.Cell{Lat: 95, Lon: 10, Population: 1000, CellSize: 0.0833},
		model.Cell{Lat: 10, Lon: 200, Population: 1000, CellSize: 0.0833},
		model.Cell{Lat: 10, Lon: 10, Population: -5, CellSize: 0.0833},
	)

	e := New(testOptions())
	res, err := e.ProcessYear(context.Background(), 1000, cells)
	if err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}
	if res.Stats.CoordinateErrors != 3 {
		t.Errorf("coordinate errors = %d, want 3", res.Stats.CoordinateErrors)
	}
	if res.Stats.ValidCells != 5 {
		t.Errorf("valid cells = %d, want 5", res.Stats.ValidCells)
	}
}

func TestProcessYearSkipsZeroPopulation(t *testing.T) {
	cells := []model.Cell{
		{Lat: 10, Lon: 10, Population: 0, CellSize: 0.0833},
		{Lat: 20, Lon: 20, Population: 500, CellSize: 0.0833},
	}

	e := New(testOptions())
	res, err := e.ProcessYear(context.Background(), 0, cells)
	if err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}
	if res.Stats.ValidCells != 1 {
		t.Errorf("valid cells = %d, want 1", res.Stats.ValidCells)
	}
	if res.Stats.CoordinateErrors != 0 {
		t.Errorf("coordinate errors = %d, want 0", res.Stats.CoordinateErrors)
	}
}

func TestProcessYearRejectsOutOfRangeYear(t *testing.T) {
	e := New(testOptions())
	if _, err := e.ProcessYear(context.Background(), model.MaxYear+1, testCells()); err == nil {
		t.Error("expected error for year beyond range")
	}
	if _, err := e.ProcessYear(context.Background(), model.MinYear-1, testCells()); err == nil {
		t.Error("expected error for year before range")
	}
}

func TestProcessYearCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Enough cells that at least one worker observes cancellation.
	cells := make([]model.Cell, 200)
	for i := range cells {
		cells[i] = model.Cell{Lat: float64(i % 80), Lon: float64(i % 170), Population: 5000, CellSize: 0.0833}
	}

	e := New(testOptions())
	if _, err := e.ProcessYear(ctx, 1800, cells); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestProcessYearDeterministicWithContinuity(t *testing.T) {
	opts := testOptions()
	cells := testCells()

	run := func() *YearResult {
		e := New(opts)
		res, err := e.ProcessYear(context.Background(), 1700, cells)
		if err != nil {
			t.Fatalf("ProcessYear: %v", err)
		}
		return res
	}

	a, b := run(), run()
	for _, level := range lod.Levels() {
		if len(a.LOD[level]) != len(b.LOD[level]) {
			t.Fatalf("%s: %d vs %d settlements across runs", level, len(a.LOD[level]), len(b.LOD[level]))
		}
		for i := range a.LOD[level] {
			if a.LOD[level][i] != b.LOD[level][i] {
				t.Errorf("%s[%d] differs across runs: %+v vs %+v", level, i, a.LOD[level][i], b.LOD[level][i])
			}
		}
	}
}

func TestProcessYearThresholdExcluded(t *testing.T) {
	opts := testOptions()
	opts.PeoplePerDot = 1000
	cells := []model.Cell{
		{Lat: 10, Lon: 10, Population: 3, CellSize: 0.0833}, // below the 250-person gate at 1000 people per dot
		{Lat: 20, Lon: 20, Population: 50000, CellSize: 0.0833},
	}

	e := New(opts)
	res, err := e.ProcessYear(context.Background(), 1600, cells)
	if err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}
	if res.Stats.ThresholdExcluded != 1 {
		t.Errorf("threshold excluded = %d, want 1", res.Stats.ThresholdExcluded)
	}
}

func TestCacheStatsAfterProcessing(t *testing.T) {
	e := New(testOptions())
	if _, err := e.ProcessYear(context.Background(), 1500, testCells()); err != nil {
		t.Fatalf("ProcessYear: %v", err)
	}
	if stats := e.CacheStats(); stats.CachedCells == 0 {
		t.Error("expected cached cells after deterministic run")
	}

	e.ClearCache()
	if stats := e.CacheStats(); stats.CachedCells != 0 {
		t.Errorf("cached cells after clear = %d, want 0", stats.CachedCells)
	}
}
