package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "footsteps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "run-1", 1500)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	stats := model.ProcessingStats{Year: 1500, CellsProcessed: 10, DotsCreated: 42, TotalPopulation: 4200}
	require.NoError(t, s.CompleteRun(ctx, "run-1", stats))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
	assert.Equal(t, 1500, got.Year)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 42, got.Stats.DotsCreated)
	assert.Equal(t, 4200.0, got.Stats.TotalPopulation)
}

func TestSQLiteFailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "run-1", 1000)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, "run-1", "conservation violated at regional"))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "conservation violated at regional", got.Error)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "absent")
	require.Error(t, err)

	require.Error(t, s.CompleteRun(ctx, "absent", model.ProcessingStats{}))
	require.Error(t, s.FailRun(ctx, "absent", "x"))
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, year := range []int{1000, 1500, 1500} {
		_, err := s.CreateRun(ctx, "run-"+string(rune('a'+i)), year)
		require.NoError(t, err)
	}
	require.NoError(t, s.CompleteRun(ctx, "run-b", model.ProcessingStats{}))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := s.ListRuns(ctx, RunFilter{Status: RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "run-b", complete[0].ID)

	year := 1500
	byYear, err := s.ListRuns(ctx, RunFilter{Year: &year})
	require.NoError(t, err)
	assert.Len(t, byYear, 2)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func sampleAggregates(year int, level lod.Level) []lod.AggregatedSettlement {
	return []lod.AggregatedSettlement{
		{Coordinates: model.Coordinates{Lon: 2.35, Lat: 48.85}, TotalPopulation: 25000, Year: year, Level: level, GridSize: 2, SourceDotCount: 12, AverageDensity: 50.4},
		{Coordinates: model.Coordinates{Lon: -0.12, Lat: 51.5}, TotalPopulation: 18000, Year: year, Level: level, GridSize: 2, SourceDotCount: 9, AverageDensity: 36.3},
	}
}

func TestSQLiteSaveAndListAggregates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "run-1", 1500)
	require.NoError(t, err)

	aggs := sampleAggregates(1500, lod.Regional)
	require.NoError(t, s.SaveAggregates(ctx, "run-1", 1500, lod.Regional, aggs))

	got, err := s.ListAggregates(ctx, 1500, lod.Regional)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by lat then lon.
	assert.Equal(t, 48.85, got[0].Coordinates.Lat)
	assert.Equal(t, 25000.0, got[0].TotalPopulation)
	assert.Equal(t, 12, got[0].SourceDotCount)
	assert.Equal(t, lod.Regional, got[0].Level)
	assert.Equal(t, 1500, got[0].Year)

	// Other levels untouched.
	other, err := s.ListAggregates(ctx, 1500, lod.Local)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteSaveAggregatesReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "run-1", 1500)
	require.NoError(t, err)
	require.NoError(t, s.SaveAggregates(ctx, "run-1", 1500, lod.Regional, sampleAggregates(1500, lod.Regional)))

	_, err = s.CreateRun(ctx, "run-2", 1500)
	require.NoError(t, err)
	replacement := sampleAggregates(1500, lod.Regional)[:1]
	require.NoError(t, s.SaveAggregates(ctx, "run-2", 1500, lod.Regional, replacement))

	got, err := s.ListAggregates(ctx, 1500, lod.Regional)
	require.NoError(t, err)
	assert.Len(t, got, 1, "reprocessing should replace previous aggregates")
}

func TestSQLiteListYears(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, "run-1", 1500)
	require.NoError(t, err)

	for _, year := range []int{1500, -1000, 0} {
		require.NoError(t, s.SaveAggregates(ctx, "run-1", year, lod.Regional, sampleAggregates(year, lod.Regional)))
	}

	years, err := s.ListYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{-1000, 0, 1500}, years)
}
