package model

import (
	"github.com/rotisserie/eris"
)

// Year bounds accepted from the HYDE dataset (negative years are BCE).
const (
	MinYear = -15000
	MaxYear = 2100
)

// Coordinates is a validated geographic position in degrees.
type Coordinates struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// NewCoordinates validates and constructs a Coordinates value.
func NewCoordinates(lon, lat float64) (Coordinates, error) {
	if lon < -180 || lon > 180 {
		return Coordinates{}, eris.Errorf("model: longitude %f out of range [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return Coordinates{}, eris.Errorf("model: latitude %f out of range [-90, 90]", lat)
	}
	return Coordinates{Lon: lon, Lat: lat}, nil
}

// Valid reports whether the coordinates are within geographic bounds.
func (c Coordinates) Valid() bool {
	return c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// SettlementTier classifies a cell by total population. The tier drives both
// the point-count formula and the placement pattern.
type SettlementTier string

const (
	TierRural SettlementTier = "rural"
	TierTown  SettlementTier = "town"
	TierCity  SettlementTier = "city"
)

// ClassifyTier derives the tier for a cell population from the two configured
// thresholds. Population below ruralToTown is rural, below townToCity is town,
// anything else is city.
func ClassifyTier(population, ruralToTown, townToCity float64) SettlementTier {
	switch {
	case population < ruralToTown:
		return TierRural
	case population < townToCity:
		return TierTown
	default:
		return TierCity
	}
}

// Settlement is a single synthesized point carrying a share of one grid
// cell's population for one year. Immutable once constructed; the batch for a
// year owns its settlements until aggregation.
type Settlement struct {
	Coordinates    Coordinates    `json:"coordinates"`
	Population     float64        `json:"population"`
	Year           int            `json:"year"`
	Tier           SettlementTier `json:"tier"`
	SourceCellSize float64        `json:"source_cell_size_degrees"`
}

// NewSettlement validates and constructs a Settlement.
func NewSettlement(coords Coordinates, population float64, year int, tier SettlementTier, cellSize float64) (Settlement, error) {
	if !coords.Valid() {
		return Settlement{}, eris.Errorf("model: settlement coordinates (%f, %f) out of range", coords.Lon, coords.Lat)
	}
	if population <= 0 {
		return Settlement{}, eris.Errorf("model: settlement population %f must be positive", population)
	}
	if year < MinYear || year > MaxYear {
		return Settlement{}, eris.Errorf("model: year %d out of range [%d, %d]", year, MinYear, MaxYear)
	}
	if cellSize <= 0 {
		return Settlement{}, eris.Errorf("model: source cell size %f must be positive", cellSize)
	}
	return Settlement{
		Coordinates:    coords,
		Population:     population,
		Year:           year,
		Tier:           tier,
		SourceCellSize: cellSize,
	}, nil
}

// Cell is one populated grid cell from the upstream parsing stage.
type Cell struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Population float64 `json:"population"`
	CellSize   float64 `json:"cell_size_degrees"`
}

// Validate checks a cell record from upstream. Invalid cells are skipped by
// the engine, never fatal.
func (c Cell) Validate() error {
	if c.Lon < -180 || c.Lon > 180 || c.Lat < -90 || c.Lat > 90 {
		return eris.Errorf("model: cell center (%f, %f) out of range", c.Lon, c.Lat)
	}
	if c.Population < 0 {
		return eris.Errorf("model: cell population %f must be non-negative", c.Population)
	}
	if c.CellSize <= 0 {
		return eris.Errorf("model: cell size %f must be positive", c.CellSize)
	}
	return nil
}
