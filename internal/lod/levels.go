// Package lod aggregates fine-grained settlements into the fixed hierarchy of
// detail levels consumed by the tiling stage.
package lod

// Level is one of the four fixed detail resolutions, coarsest to finest.
// The level count and the grid-size meaning live here and nowhere else; they
// are never inferred from configuration shape.
type Level int

const (
	Regional Level = iota
	Subregional
	Local
	Detailed
)

// Levels returns all levels coarsest-first.
func Levels() []Level {
	return []Level{Regional, Subregional, Local, Detailed}
}

func (l Level) String() string {
	switch l {
	case Regional:
		return "regional"
	case Subregional:
		return "subregional"
	case Local:
		return "local"
	case Detailed:
		return "detailed"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to its Level. Returns Detailed, false for
// unknown names.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "regional":
		return Regional, true
	case "subregional":
		return Subregional, true
	case "local":
		return Local, true
	case "detailed":
		return Detailed, true
	default:
		return Detailed, false
	}
}

// ZoomWindow returns the inclusive slippy-map zoom range at which this level
// is rendered. Windows are non-overlapping and cover z0-z12.
func (l Level) ZoomWindow() (minZoom, maxZoom int) {
	switch l {
	case Regional:
		return 0, 1
	case Subregional:
		return 2, 3
	case Local:
		return 4, 5
	default:
		return 6, 12
	}
}

// LevelForZoom returns the level rendered at the given zoom.
func LevelForZoom(zoom float64) Level {
	switch {
	case zoom < 2:
		return Regional
	case zoom < 4:
		return Subregional
	case zoom < 6:
		return Local
	default:
		return Detailed
	}
}

// GridConfig holds the aggregation grid size in degrees for each coarse
// level. Detailed keeps the source resolution and has no grid size here.
type GridConfig struct {
	RegionalGridSize    float64 `yaml:"regional_grid_size" mapstructure:"regional_grid_size"`
	SubregionalGridSize float64 `yaml:"subregional_grid_size" mapstructure:"subregional_grid_size"`
	LocalGridSize       float64 `yaml:"local_grid_size" mapstructure:"local_grid_size"`
}

// DefaultGridConfig mirrors the source dataset's 5-arcminute base resolution:
// roughly 200 km regional cells down to 10 km local cells.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		RegionalGridSize:    2.0,
		SubregionalGridSize: 0.5,
		LocalGridSize:       0.1,
	}
}

// GridSize returns the aggregation grid size for a coarse level, or 0 for
// Detailed.
func (c GridConfig) GridSize(l Level) float64 {
	switch l {
	case Regional:
		return c.RegionalGridSize
	case Subregional:
		return c.SubregionalGridSize
	case Local:
		return c.LocalGridSize
	default:
		return 0
	}
}
