// Package store persists processing runs and their aggregated settlements.
// Two drivers implement the same interface: SQLite for local single-machine
// use and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/chronomaps/footsteps/internal/lod"
	"github.com/chronomaps/footsteps/internal/model"
)

// RunStatus is the lifecycle state of a processing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one year-processing pass.
type Run struct {
	ID        string                 `json:"id"`
	Year      int                    `json:"year"`
	Status    RunStatus              `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Stats     *model.ProcessingStats `json:"stats,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Year   *int      `json:"year,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for the synthesis pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, id string, year int) (*Run, error)
	CompleteRun(ctx context.Context, runID string, stats model.ProcessingStats) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	// Aggregates. SaveAggregates replaces any previous data for the same
	// year and level so reprocessing a year is idempotent.
	SaveAggregates(ctx context.Context, runID string, year int, level lod.Level, aggs []lod.AggregatedSettlement) error
	ListAggregates(ctx context.Context, year int, level lod.Level) ([]lod.AggregatedSettlement, error)
	ListYears(ctx context.Context) ([]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
