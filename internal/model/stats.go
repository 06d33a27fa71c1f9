package model

import "time"

// ProcessingStats accumulates counters for one year's processing pass.
type ProcessingStats struct {
	Year                 int           `json:"year"`
	CellsProcessed       int           `json:"cells_processed"`
	ValidCells           int           `json:"valid_cells"`
	DotsCreated          int           `json:"dots_created"`
	TotalPopulation      float64       `json:"total_population"`
	CoordinateErrors     int           `json:"coordinate_errors"`
	ThresholdExcluded    int           `json:"threshold_excluded"`
	SpacingFallbacks     int           `json:"spacing_fallbacks"`
	Elapsed              time.Duration `json:"elapsed"`
}

// ValidCellRatio is the share of processed cells that survived validation.
func (s ProcessingStats) ValidCellRatio() float64 {
	if s.CellsProcessed == 0 {
		return 0
	}
	return float64(s.ValidCells) / float64(s.CellsProcessed)
}

// PopulationPerDot is the average population each dot represents.
func (s ProcessingStats) PopulationPerDot() float64 {
	if s.DotsCreated == 0 {
		return 0
	}
	return s.TotalPopulation / float64(s.DotsCreated)
}
